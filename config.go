package go_bcapi

// TOML configuration loading
//
// Field tooling ships TOML config files alongside the legacy flat
// key=value; format. Nested tables flatten into the dotted property keys
// the client properties map uses, so
//
//	[bcapi.tcp]
//	host = "10.2.0.1"
//	port = 2300
//
// sets bcapi.tcp.host and bcapi.tcp.port.

import (
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// LoadConfig loads a configuration file and calls the callback for each
// key-value pair. Files ending in .toml use the TOML parser; anything
// else uses the flat key=value; format of ParseConfig. A missing file is
// silently ignored so the auto-load path works on machines without one.
func LoadConfig(path string, cb func(string, string)) {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		ParseTOMLConfig(path, cb)
		return
	}
	ParseConfig(path, cb)
}

// ParseTOMLConfig parses a TOML configuration file, flattens nested
// tables into dotted keys, and calls the callback for each scalar.
func ParseTOMLConfig(path string, cb func(string, string)) {
	var root map[string]interface{}
	if _, err := toml.DecodeFile(path, &root); err != nil {
		if os.IsNotExist(err) {
			return
		}
		Error("%s", err.Error())
		return
	}
	Debug("Parsing config file '%s'", path)
	flattenTOMLTable("", root, cb)
}

// flattenTOMLTable walks nested tables depth-first in sorted key order,
// joining table names with dots. Scalars are stringified the way the
// properties map expects; arrays have no property form and are skipped.
func flattenTOMLTable(prefix string, table map[string]interface{}, cb func(string, string)) {
	keys := make([]string, 0, len(table))
	for k := range table {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		switch v := table[k].(type) {
		case map[string]interface{}:
			flattenTOMLTable(key, v, cb)
		case string:
			cb(key, v)
		case bool:
			cb(key, strconv.FormatBool(v))
		case int64:
			cb(key, strconv.FormatInt(v, 10))
		case float64:
			cb(key, strconv.FormatFloat(v, 'f', -1, 64))
		case time.Time:
			cb(key, v.Format(time.RFC3339))
		default:
			Warning("Config key %s has no scalar property form (%T), skipping", key, table[k])
		}
	}
}
