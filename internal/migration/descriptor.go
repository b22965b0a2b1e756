package migration

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/traillog/traillog/backend/go-services/internal/persistence"
)

// Kind is the semantic type of a stored field. It decides the default value
// written into documents that predate the field.
type Kind int

const (
	KindString Kind = iota
	KindNumber
	KindBoolean
	KindDate
	KindEnum
	KindIdentity
	KindObject
	KindList
	KindReference
)

var kindNames = [...]string{"string", "number", "boolean", "date", "enum", "identity", "object", "list", "reference"}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// FieldDescriptor describes one stored field of an entity type.
// Zero carries the default for enum, number and object fields.
type FieldDescriptor struct {
	Name     string
	Kind     Kind
	Required bool
	Zero     any
}

// Enum is implemented by enumerated field types. DefaultVariant is written
// into documents missing the field.
type Enum interface {
	DefaultVariant() any
}

// Describer lets an entity list its fields explicitly instead of having them
// derived from its struct definition.
type Describer interface {
	FieldDescriptors() []FieldDescriptor
}

var (
	timeType = reflect.TypeOf(time.Time{})
	enumType = reflect.TypeOf((*Enum)(nil)).Elem()
)

// Describe returns the field descriptors of T. Fields come from the bson tags
// of T's exported fields; a `field` tag refines them:
//
//	field:"identity"   the field holds an entity identity
//	field:"required"   the field must be present on every document
//	field:"-"          the field is not managed by migration
func Describe[T any]() []FieldDescriptor {
	var zero T
	if d, ok := any(&zero).(Describer); ok {
		return d.FieldDescriptors()
	}
	return describeStruct(reflect.TypeOf(zero))
}

func describeStruct(t reflect.Type) []FieldDescriptor {
	if t.Kind() != reflect.Struct {
		return nil
	}
	var out []FieldDescriptor
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if !sf.IsExported() {
			continue
		}
		name, inline, skip := bsonName(sf)
		if skip {
			continue
		}
		if inline {
			out = append(out, describeStruct(sf.Type)...)
			continue
		}
		tags := strings.Split(sf.Tag.Get("field"), ",")
		d := FieldDescriptor{Name: name}
		identity := name == persistence.IdentityField
		for _, tag := range tags {
			switch strings.TrimSpace(tag) {
			case "-":
				skip = true
			case "identity":
				identity = true
			case "required":
				d.Required = true
			}
		}
		if skip {
			continue
		}
		if identity {
			d.Kind = KindIdentity
			d.Required = d.Required || name == persistence.IdentityField
		} else {
			d.Kind, d.Zero = kindOf(sf.Type)
		}
		out = append(out, d)
	}
	return out
}

// bsonName mirrors the driver's struct codec: the tag name when present,
// otherwise the lowercased field name.
func bsonName(sf reflect.StructField) (name string, inline, skip bool) {
	tag, ok := sf.Tag.Lookup("bson")
	if !ok {
		return strings.ToLower(sf.Name), false, false
	}
	parts := strings.Split(tag, ",")
	if parts[0] == "-" {
		return "", false, true
	}
	for _, p := range parts[1:] {
		if p == "inline" {
			inline = true
		}
	}
	name = parts[0]
	if name == "" {
		name = strings.ToLower(sf.Name)
	}
	return name, inline, false
}

func kindOf(t reflect.Type) (Kind, any) {
	if t == timeType {
		return KindDate, nil
	}
	if t.Implements(enumType) {
		return KindEnum, reflect.Zero(t).Interface().(Enum).DefaultVariant()
	}
	if reflect.PointerTo(t).Implements(enumType) {
		return KindEnum, reflect.New(t).Interface().(Enum).DefaultVariant()
	}
	switch t.Kind() {
	case reflect.String:
		return KindString, nil
	case reflect.Bool:
		return KindBoolean, nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return KindNumber, reflect.Zero(t).Interface()
	case reflect.Struct:
		return KindObject, reflect.Zero(t).Interface()
	case reflect.Slice, reflect.Array:
		return KindList, nil
	default:
		return KindReference, nil
	}
}
