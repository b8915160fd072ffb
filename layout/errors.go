package layout

import "errors"

// ErrConfig is the sentinel wrapped by every schema-compilation failure:
// non-positive array length, unknown scalar type, an empty or duplicate
// field name. (A non-object value supplied for a nested field is a write
// failure and wraps ErrSchemaType.) Callers' bug — not
// recoverable locally (spec §7 ConfigError).
var ErrConfig = errors.New("layout: invalid schema")

// ErrSchemaType is the sentinel wrapped by every write_fields failure:
// wrong value type for a field, array-length mismatch, an over-long
// UTF-8 string. The buffer is left unmutated (spec §7 SchemaTypeError).
var ErrSchemaType = errors.New("layout: schema type error")
