// Package runtimes turns process arguments and environment variables into a
// nested configuration map and decodes it into structs.
package runtimes

import (
	"strings"
)

var DotSplit byte = '-'

// ParseEnvs keeps the variables starting with prefix, drops the prefix and
// the separator after it, and nests the rest on '_' and DotSplit.
//
//	SMTOOL_KEY=a SMTOOL_KEY_PASSWORD=1 with prefix "smtool" will be {"key":{"":"a", "password":"1"}}
func ParseEnvs(lst []string, prefix string) (data map[string]interface{}) {
	prefix = strings.ToLower(prefix)
	data = make(map[string]interface{}, len(lst)/2)
	for _, v := range lst {
		k, val, ok := strings.Cut(v, "=")
		if !ok {
			continue
		}
		k = strings.ToLower(k)
		if !strings.HasPrefix(k, prefix) {
			continue
		}
		k = strings.TrimLeft(strings.TrimPrefix(k, prefix), "_"+string(DotSplit))
		if k == "" {
			continue
		}
		setdata(data, strings.ReplaceAll(k, "_", string(DotSplit)), val)
	}
	return data
}

// ParseArgs
// -user=a -user-abc 1 -v will be {"user":{"":"a", "abc":"1"}, "v":"true"}
func ParseArgs(lst []string) (data map[string]interface{}) {
	var key string
	data = make(map[string]interface{}, len(lst)/2)
	for k := range lst {
		if len(lst[k]) > 1 && lst[k][0] == '-' {
			if key != "" {
				setdata(data, key, "true")
			}
			key = strings.TrimLeft(lst[k], "-")
			if kk, v, ok := strings.Cut(key, "="); ok {
				setdata(data, kk, v)
				key = ""
			}
			continue
		}
		if key != "" {
			setdata(data, key, lst[k])
			key = ""
		}
	}
	if key != "" {
		setdata(data, key, "true")
	}
	return data
}

func setdata(data map[string]interface{}, key, value string) {
	kk := strings.Split(key, string(DotSplit))
	var l = len(kk)
	for k := range kk {
		if k == l-1 {
			if vv, ok := data[kk[k]].(map[string]interface{}); ok {
				vv[""] = value
				return
			}
			data[kk[k]] = value
			return
		}
		switch vv := data[kk[k]].(type) {
		case map[string]interface{}:
			data = vv
		case nil:
			next := make(map[string]interface{})
			data[kk[k]] = next
			data = next
		default:
			next := map[string]interface{}{"": vv}
			data[kk[k]] = next
			data = next
		}
	}
}

// Lookup resolves a DotSplit separated key. A key naming a nested map
// resolves to its "" entry.
func Lookup(data map[string]interface{}, key string) (string, bool) {
	var cur interface{} = data
	for _, k := range strings.Split(key, string(DotSplit)) {
		m, ok := cur.(map[string]interface{})
		if !ok {
			return "", false
		}
		if cur, ok = m[k]; !ok {
			return "", false
		}
	}
	if m, ok := cur.(map[string]interface{}); ok {
		cur = m[""]
	}
	s, ok := cur.(string)
	return s, ok
}

// Merge copies src into dst, nested maps merged and src winning on conflicts.
func Merge(dst, src map[string]interface{}) map[string]interface{} {
	if dst == nil {
		dst = make(map[string]interface{}, len(src))
	}
	for k, v := range src {
		sm, sok := v.(map[string]interface{})
		dm, dok := dst[k].(map[string]interface{})
		switch {
		case sok && dok:
			dst[k] = Merge(dm, sm)
		case sok:
			if s, ok := dst[k].(string); ok {
				sm = Merge(map[string]interface{}{"": s}, sm)
			}
			dst[k] = sm
		case dok:
			dm[""] = v
		default:
			dst[k] = v
		}
	}
	return dst
}
