package v1

import (
	"fmt"
	"reflect"
	"slices"
	"strconv"
	"strings"
)

const (
	// urlsKey expands into one url= parameter per entry.
	urlsKey = "urls"
	// instancesKey expands into one instance_id= parameter per entry.
	instancesKey = "instances"
	// fileKey names a local file uploaded as multipart form data.
	fileKey = "file"
)

type param struct {
	key    string
	values []string
}

// Args is an ordered set of request parameters. Keys keep their insertion
// order when serialized and Add may repeat a key. A nil *Args is empty.
type Args struct {
	params []param
}

func NewArgs() *Args {
	return &Args{}
}

// Set replaces every value of key, keeping the position of its first
// occurrence, or appends key when it is new.
func (a *Args) Set(key string, value any) *Args {
	values := formatValue(value)
	i := slices.IndexFunc(a.params, func(p param) bool { return p.key == key })
	if i < 0 {
		a.params = append(a.params, param{key: key, values: values})
		return a
	}

	a.params[i].values = values
	rest := slices.DeleteFunc(a.params[i+1:], func(p param) bool { return p.key == key })
	a.params = a.params[:i+1+len(rest)]
	return a
}

// Add appends key even when it is already present.
func (a *Args) Add(key string, value any) *Args {
	a.params = append(a.params, param{key: key, values: formatValue(value)})
	return a
}

func (a *Args) Del(key string) *Args {
	a.params = slices.DeleteFunc(a.params, func(p param) bool { return p.key == key })
	return a
}

func (a *Args) Has(key string) bool {
	if a == nil {
		return false
	}
	return slices.ContainsFunc(a.params, func(p param) bool { return p.key == key })
}

// Get returns the first value stored under key. List values are joined
// with commas, the way they are sent for non-reserved keys.
func (a *Args) Get(key string) (string, bool) {
	if a == nil {
		return "", false
	}
	for _, p := range a.params {
		if p.key == key {
			return strings.Join(p.values, ","), true
		}
	}
	return "", false
}

// Values returns every value stored under key, across repeated keys.
func (a *Args) Values(key string) []string {
	if a == nil {
		return nil
	}
	var values []string
	for _, p := range a.params {
		if p.key == key {
			values = append(values, p.values...)
		}
	}
	return values
}

func (a *Args) Len() int {
	if a == nil {
		return 0
	}
	return len(a.params)
}

// Clone returns a deep copy; endpoint methods clone before injecting
// identifiers so caller arguments are never modified.
func (a *Args) Clone() *Args {
	c := NewArgs()
	if a == nil {
		return c
	}
	c.params = make([]param, len(a.params))
	for i, p := range a.params {
		c.params[i] = param{key: p.key, values: slices.Clone(p.values)}
	}
	return c
}

func formatValue(value any) []string {
	switch v := value.(type) {
	case nil:
		return []string{""}
	case string:
		return []string{v}
	case []string:
		return slices.Clone(v)
	case bool:
		return []string{strconv.FormatBool(v)}
	case float32:
		return []string{strconv.FormatFloat(float64(v), 'f', -1, 32)}
	case float64:
		return []string{strconv.FormatFloat(v, 'f', -1, 64)}
	case fmt.Stringer:
		return []string{v.String()}
	}

	rv := reflect.ValueOf(value)
	if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
		values := make([]string, 0, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			values = append(values, formatValue(rv.Index(i).Interface())...)
		}
		return values
	}
	return []string{fmt.Sprint(value)}
}
