package extract

import (
	"slices"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/pevans/pagewatch/facts"
)

// extractStructuredData flattens the JSON-LD objects of the given type (or
// every top-level object when typ is empty) into sorted "path: value"
// lines, one blank line between objects.
func extractStructuredData(markup, typ string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return ""
	}

	var objects []map[string]any
	doc.Find("script").Each(func(_ int, s *goquery.Selection) {
		if !facts.IsJSONLD(s.AttrOr("type", "")) {
			return
		}
		payload, ok := facts.ParseJSONLD(s.Text())
		if !ok {
			return
		}
		if typ == "" {
			objects = append(objects, topLevel(payload)...)
			return
		}
		objects = append(objects, ofType(payload, typ)...)
	})

	var blocks []string
	for _, obj := range objects {
		var lines []string
		flatten("", obj, &lines)
		if len(lines) > 0 {
			blocks = append(blocks, strings.Join(lines, "\n"))
		}
	}
	return strings.Join(blocks, "\n\n")
}

// topLevel returns the objects of a payload, unwrapping arrays and @graph.
func topLevel(v any) []map[string]any {
	switch v := v.(type) {
	case map[string]any:
		if graph, ok := v["@graph"].([]any); ok {
			return topLevel(graph)
		}
		return []map[string]any{v}
	case []any:
		var out []map[string]any
		for _, item := range v {
			out = append(out, topLevel(item)...)
		}
		return out
	}
	return nil
}

// ofType returns every object at any depth whose @type includes typ. A
// matching object's children are not searched again.
func ofType(v any, typ string) []map[string]any {
	switch v := v.(type) {
	case map[string]any:
		for _, t := range facts.TypeNames(v) {
			if strings.EqualFold(t, typ) {
				return []map[string]any{v}
			}
		}
		var out []map[string]any
		for _, key := range sortedKeys(v) {
			out = append(out, ofType(v[key], typ)...)
		}
		return out
	case []any:
		var out []map[string]any
		for _, item := range v {
			out = append(out, ofType(item, typ)...)
		}
		return out
	}
	return nil
}

func flatten(prefix string, v any, lines *[]string) {
	switch v := v.(type) {
	case map[string]any:
		for _, key := range sortedKeys(v) {
			if key == "@context" {
				continue
			}
			flatten(join(prefix, key), v[key], lines)
		}
	case []any:
		for i, item := range v {
			flatten(prefix+"["+strconv.Itoa(i)+"]", item, lines)
		}
	case string:
		if s := strings.Join(strings.Fields(v), " "); s != "" {
			*lines = append(*lines, prefix+": "+s)
		}
	case float64:
		*lines = append(*lines, prefix+": "+strconv.FormatFloat(v, 'f', -1, 64))
	case bool:
		*lines = append(*lines, prefix+": "+strconv.FormatBool(v))
	}
}

func join(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
