package cloud

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"siteimage/internal/model"
)

// shortKeys maps configuration keys to URL transformation parameters.
var shortKeys = map[string]string{
	"effect":       "e",
	"quality":      "q",
	"radius":       "r",
	"angle":        "a",
	"opacity":      "o",
	"border":       "bo",
	"background":   "b",
	"color":        "co",
	"dpr":          "dpr",
	"fetch_format": "f",
	"flags":        "fl",
	"x":            "x",
	"y":            "y",
	"zoom":         "z",
	"aspect_ratio": "ar",
	"overlay":      "l",
	"underlay":     "u",
}

// Definition renders t as a transformation string, e.g.
// "c_thumb,d_placeholder.png,g_face:center,h_100,w_100". Components are sorted so the
// same definition always produces the same string. Unknown extra keys are used verbatim.
func Definition(t model.Transformation) string {
	parts := make([]string, 0, 5+len(t.Extra))
	add := func(key, value string) {
		if value != "" {
			parts = append(parts, key+"_"+value)
		}
	}

	if t.Width > 0 {
		add("w", strconv.Itoa(t.Width))
	}
	if t.Height > 0 {
		add("h", strconv.Itoa(t.Height))
	}
	add("c", t.Crop)
	add("g", t.Gravity)
	add("d", t.DefaultImage)
	for key, value := range t.Extra {
		short, ok := shortKeys[key]
		if !ok {
			short = key
		}
		add(short, formatValue(value))
	}

	slices.Sort(parts)
	return strings.Join(parts, ",")
}

func formatValue(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return v
	case []any:
		items := make([]string, 0, len(v))
		for _, item := range v {
			items = append(items, formatValue(item))
		}
		return strings.Join(items, ".")
	default:
		return fmt.Sprint(v)
	}
}
