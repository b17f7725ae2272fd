// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package docstore

import (
	"fmt"
	"reflect"

	json "github.com/goccy/go-json"
)

// decodeSlice unmarshals each raw JSON document in raws into a freshly
// appended element of the slice outSlice points to. outSlice must be a
// pointer to a slice of a concrete struct or pointer-to-struct type; this
// keeps callers (Query call sites) free of manual reflection.
func decodeSlice(raws [][]byte, outSlice any) error {
	ptr := reflect.ValueOf(outSlice)
	if ptr.Kind() != reflect.Ptr || ptr.Elem().Kind() != reflect.Slice {
		return fmt.Errorf("docstore: outSlice must be a pointer to a slice, got %T", outSlice)
	}
	sliceVal := ptr.Elem()
	elemType := sliceVal.Type().Elem()

	result := reflect.MakeSlice(sliceVal.Type(), 0, len(raws))
	for _, raw := range raws {
		elemPtr := reflect.New(elemType)
		if elemType.Kind() == reflect.Ptr {
			elemPtr = reflect.New(elemType.Elem())
		}
		if err := json.Unmarshal(raw, elemPtr.Interface()); err != nil {
			return fmt.Errorf("docstore: decode query result: %w", err)
		}
		if elemType.Kind() == reflect.Ptr {
			result = reflect.Append(result, elemPtr)
		} else {
			result = reflect.Append(result, elemPtr.Elem())
		}
	}
	sliceVal.Set(result)
	return nil
}
