package device

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// QueryError reports a lookup expression that cannot be interpreted.
type QueryError struct {
	Query  string
	Reason string
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("query %q: %s", e.Query, e.Reason)
}

var screenIndexPattern = regexp.MustCompile(`/*screen\[(\d+)\]`)

// ByIndex returns the device at position i of reg.Devices().
func ByIndex(reg Registry, i int) (Device, error) {
	devices := reg.Devices()
	if i < 0 || i >= len(devices) {
		return Device{}, &DeviceResolutionError{
			ID:     ScreenID(i),
			Reason: fmt.Sprintf("index out of range (%d devices)", len(devices)),
		}
	}
	return devices[i], nil
}

// FindScreen resolves an xpath-like screen expression:
//
//	//screen[@default=true]   the default device
//	//screen                  the first device
//	//screen[2]               the device at index 2
func FindScreen(reg Registry, query string) (Device, error) {
	value := strings.ToLower(strings.TrimSpace(query))
	if !strings.Contains(value, "screen") {
		return Device{}, &QueryError{Query: query, Reason: "not a screen expression"}
	}
	if strings.Contains(value, "default") {
		return reg.Default()
	}
	if strings.HasSuffix(value, "screen") {
		return ByIndex(reg, 0)
	}
	m := screenIndexPattern.FindStringSubmatch(value)
	if m == nil {
		return Device{}, &QueryError{Query: query, Reason: "unsupported screen expression"}
	}
	i, err := strconv.Atoi(m[1])
	if err != nil {
		return Device{}, &QueryError{Query: query, Reason: "invalid screen index"}
	}
	return ByIndex(reg, i)
}

// FindRegion parses a rectangle expression relative to d, for example
// //rectangle[@dim='70,80,100,200'] (x, y, width, height).
func FindRegion(d Device, query string) (Region, error) {
	value := strings.ToLower(query)
	if !strings.Contains(value, "rectangle") {
		return Region{}, &QueryError{Query: query, Reason: "not a rectangle expression"}
	}
	i := strings.Index(value, "dim='")
	if i < 0 {
		return Region{}, &QueryError{
			Query:  query,
			Reason: "missing dim attribute, expected //rectangle[@dim='x,y,width,height']",
		}
	}
	rest := value[i+len("dim='"):]
	end := strings.IndexByte(rest, '\'')
	if end < 0 {
		return Region{}, &QueryError{Query: query, Reason: "unterminated dim attribute"}
	}
	parts := strings.Split(rest[:end], ",")
	if len(parts) != 4 {
		return Region{}, &QueryError{Query: query, Reason: "dim needs exactly 4 values"}
	}
	var n [4]int
	for k, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return Region{}, &QueryError{Query: query, Reason: fmt.Sprintf("dim value %q is not an integer", p)}
		}
		n[k] = v
	}
	rect := Rect{X: n[0], Y: n[1], Width: n[2], Height: n[3]}
	if rect.Width < 0 || rect.Height < 0 {
		return Region{}, &QueryError{Query: query, Reason: "negative rectangle size"}
	}
	return Region{Device: d, Rect: rect}, nil
}
