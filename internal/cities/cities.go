package cities

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/viant/sqlite-vptree/vector"
)

// ErrMalformed is returned for records that do not follow `"Name" 12°34'N 56°07'W`.
var ErrMalformed = errors.New("cities: malformed record")

var coordPattern = regexp.MustCompile(`^([0-9]+)°([0-9]+)'([NESW])$`)

// City is a named point on the globe, coordinates in degrees.
type City struct {
	Name string  `json:"name"`
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
}

func (c City) String() string {
	return fmt.Sprintf("%s (%.2f,%.2f)", c.Name, c.Lat, c.Lon)
}

// JSON returns the city as JSON object text, the form stored in SQL trees.
func (c City) JSON() string {
	data, _ := json.Marshal(c)
	return string(data)
}

// Distance returns the great-circle distance between a and b in kilometers.
func Distance(a, b City) float64 {
	return vector.Haversine(a.Lat, a.Lon, b.Lat, b.Lon)
}

// ElementDistance measures two tree elements holding cities: City values,
// *City or JSON object text.
func ElementDistance(a, b any) (float64, error) {
	ca, err := FromElement(a)
	if err != nil {
		return 0, err
	}
	cb, err := FromElement(b)
	if err != nil {
		return 0, err
	}
	return Distance(ca, cb), nil
}

// FromElement recovers a City from a tree element.
func FromElement(v any) (City, error) {
	switch actual := v.(type) {
	case City:
		return actual, nil
	case *City:
		if actual == nil {
			return City{}, fmt.Errorf("cities: nil city")
		}
		return *actual, nil
	case string:
		return decode([]byte(actual))
	case []byte:
		return decode(actual)
	case json.RawMessage:
		return decode(actual)
	}
	return City{}, fmt.Errorf("cities: %T is not a city", v)
}

func decode(data []byte) (City, error) {
	var c City
	if err := json.Unmarshal(data, &c); err != nil {
		return City{}, fmt.Errorf("cities: invalid city %q: %w", data, err)
	}
	return c, nil
}

// ParseCoord parses a coordinate such as 12°34'N. lat selects the valid
// hemisphere letters (N/S or E/W).
func ParseCoord(s string, lat bool) (float64, error) {
	m := coordPattern.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("%w: coordinate %q", ErrMalformed, s)
	}
	deg, _ := strconv.Atoi(m[1])
	minutes, _ := strconv.Atoi(m[2])
	if minutes >= 60 {
		return 0, fmt.Errorf("%w: minutes out of range in %q", ErrMalformed, s)
	}
	coord := float64(deg) + float64(minutes)/60
	switch dir := m[3]; {
	case lat && dir == "N", !lat && dir == "E":
	case lat && dir == "S", !lat && dir == "W":
		coord = -coord
	default:
		return 0, fmt.Errorf("%w: unexpected hemisphere %s in %q", ErrMalformed, dir, s)
	}
	limit := 180.0
	if lat {
		limit = 90
	}
	if coord < -limit || coord > limit {
		return 0, fmt.Errorf("%w: coordinate %q out of range", ErrMalformed, s)
	}
	return coord, nil
}

// ParseRecord parses one `"Name" latitude longitude` line.
func ParseRecord(line string) (City, error) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, `"`) {
		return City{}, fmt.Errorf("%w: missing quoted name", ErrMalformed)
	}
	end := strings.IndexByte(line[1:], '"')
	if end < 0 {
		return City{}, fmt.Errorf("%w: unterminated name", ErrMalformed)
	}
	name := line[1 : end+1]
	fields := strings.Fields(line[end+2:])
	if len(fields) != 2 {
		return City{}, fmt.Errorf("%w: want 2 coordinates, got %d", ErrMalformed, len(fields))
	}
	lat, err := ParseCoord(fields[0], true)
	if err != nil {
		return City{}, err
	}
	lon, err := ParseCoord(fields[1], false)
	if err != nil {
		return City{}, err
	}
	return City{Name: name, Lat: lat, Lon: lon}, nil
}

// Load parses every record of r, skipping blank and malformed lines.
func Load(r io.Reader, logger *slog.Logger) ([]City, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	var out []City
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		c, err := ParseRecord(line)
		if err != nil {
			logger.Debug("skipping city record", "line", lineNo, "error", err)
			continue
		}
		out = append(out, c)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("cities: read: %w", err)
	}
	return out, nil
}

// LoadFile is Load over a file.
func LoadFile(path string, logger *slog.Logger) ([]City, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Load(f, logger)
}

// Find returns the first city whose name matches, ignoring case.
func Find(list []City, name string) (City, bool) {
	for _, c := range list {
		if strings.EqualFold(c.Name, name) {
			return c, true
		}
	}
	return City{}, false
}
