package datacontract

import "strings"

// family groups the logical field types of a contract.
type family int

const (
	familyUnknown family = iota
	familyString
	familyTimestampTZ
	familyTimestampNTZ
	familyDate
	familyTime
	familyDecimal
	familyFloat
	familyDouble
	familyInteger
	familyLong
	familyBoolean
	familyBytes
	familyObject
	familyArray
	familyMap
	familyNull
)

var familiesByType = map[string]family{
	"string":        familyString,
	"text":          familyString,
	"varchar":       familyString,
	"timestamp":     familyTimestampTZ,
	"timestamp_tz":  familyTimestampTZ,
	"timestamp_ntz": familyTimestampNTZ,
	"date":          familyDate,
	"time":          familyTime,
	"number":        familyDecimal,
	"decimal":       familyDecimal,
	"numeric":       familyDecimal,
	"float":         familyFloat,
	"double":        familyDouble,
	"int":           familyInteger,
	"integer":       familyInteger,
	"long":          familyLong,
	"bigint":        familyLong,
	"boolean":       familyBoolean,
	"bytes":         familyBytes,
	"object":        familyObject,
	"record":        familyObject,
	"struct":        familyObject,
	"array":         familyArray,
	"map":           familyMap,
	"null":          familyNull,
}

func typeFamily(t string) family {
	return familiesByType[strings.ToLower(strings.TrimSpace(t))]
}

func (f family) isString() bool {
	return f == familyString
}

func (f family) isNumeric() bool {
	switch f {
	case familyDecimal, familyFloat, familyDouble, familyInteger, familyLong:
		return true
	}
	return false
}

func (f family) isIntegral() bool {
	return f == familyInteger || f == familyLong
}

// kind is the coarse type class used when comparing a contract type with a
// column type reported by a data source.
type kind string

const (
	kindString    kind = "string"
	kindInteger   kind = "integer"
	kindNumber    kind = "number"
	kindBoolean   kind = "boolean"
	kindTimestamp kind = "timestamp"
	kindDate      kind = "date"
	kindBytes     kind = "bytes"
	kindComplex   kind = "complex"
	kindOther     kind = "other"
)

func (f family) kind() kind {
	switch f {
	case familyString:
		return kindString
	case familyInteger, familyLong:
		return kindInteger
	case familyDecimal, familyFloat, familyDouble:
		return kindNumber
	case familyBoolean:
		return kindBoolean
	case familyTimestampTZ, familyTimestampNTZ:
		return kindTimestamp
	case familyDate:
		return kindDate
	case familyBytes:
		return kindBytes
	case familyObject, familyArray, familyMap:
		return kindComplex
	default:
		return kindOther
	}
}

// columnKind classifies a database type name as reported by a driver.
func columnKind(dbType string) kind {
	t := strings.ToLower(strings.TrimSpace(dbType))
	if i := strings.IndexAny(t, "(<"); i >= 0 {
		t = strings.TrimSpace(t[:i])
	}
	switch {
	case t == "":
		return kindOther
	case strings.HasSuffix(t, "[]") || strings.HasPrefix(t, "array") || strings.HasPrefix(t, "_"):
		return kindComplex
	case strings.Contains(t, "char") || strings.Contains(t, "text") || t == "string" || t == "uuid" || t == "clob":
		return kindString
	case strings.Contains(t, "int") || t == "long":
		return kindInteger
	case strings.Contains(t, "numeric") || strings.Contains(t, "decimal") || t == "number" || t == "bignumeric" ||
		strings.Contains(t, "float") || strings.Contains(t, "double") || t == "real" || t == "money":
		return kindNumber
	case strings.HasPrefix(t, "bool") || t == "bit":
		return kindBoolean
	case strings.HasPrefix(t, "timestamp") || strings.HasPrefix(t, "datetime"):
		return kindTimestamp
	case t == "date":
		return kindDate
	case t == "bytea" || t == "blob" || strings.Contains(t, "binary") || t == "bytes":
		return kindBytes
	case t == "json" || t == "jsonb" || t == "struct" || t == "record" || t == "row" || t == "map" ||
		t == "object" || t == "variant" || t == "super":
		return kindComplex
	default:
		return kindOther
	}
}

// typesCompatible reports whether a column of dbType can hold values of the
// contract type contractType.
func typesCompatible(contractType, dbType string) bool {
	want := typeFamily(contractType).kind()
	got := columnKind(dbType)
	if want == kindOther || got == kindOther {
		return true
	}
	if want == got {
		return true
	}
	// Integral values fit exact numerics, e.g. Snowflake NUMBER(38,0).
	return want == kindInteger && got == kindNumber
}
