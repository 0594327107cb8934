package monitor

import (
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/mariuswilms/beanstalk/protocol"
)

// pathEscaper escapes the characters sjson and gjson treat as path syntax.
var pathEscaper = strings.NewReplacer(
	`\`, `\\`,
	".", `\.`,
	"*", `\*`,
	"?", `\?`,
	"|", `\|`,
	"#", `\#`,
	"@", `\@`,
)

// RenderStats renders stats as a JSON object with its scalars typed as
// they were decoded: integers and floats as numbers, the rest as strings.
func RenderStats(stats *protocol.Stats) ([]byte, error) {
	doc := []byte("{}")

	for _, key := range stats.Keys() {
		v, _ := stats.Get(key)

		var (
			value interface{}
			err   error
		)

		switch v.Kind {
		case protocol.KindInt:
			value = v.Int
		case protocol.KindFloat:
			value = v.Float
		default:
			value = v.Raw
		}

		if doc, err = sjson.SetBytes(doc, pathEscaper.Replace(key), value); err != nil {
			return nil, err
		}
	}

	return doc, nil
}

// RenderList renders names as a JSON array.
func RenderList(names []string) ([]byte, error) {
	doc := []byte("[]")

	for _, name := range names {
		var err error
		if doc, err = sjson.SetBytes(doc, "-1", name); err != nil {
			return nil, err
		}
	}

	return doc, nil
}

// Field picks path out of a rendered document. ok is false when the path
// does not exist.
func Field(doc []byte, path string) (raw string, ok bool) {
	result := gjson.GetBytes(doc, path)
	if !result.Exists() {
		return "", false
	}

	return result.Raw, true
}
