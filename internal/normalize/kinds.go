package normalize

import "fmt"

// Kind names the semantic type of a field and therefore the rule used to normalize it.
type Kind string

const (
	KindText      Kind = "text"
	KindURL       Kind = "url"
	KindPhone     Kind = "phone"
	KindPhoneList Kind = "phone_list"
	KindID        Kind = "id"
)

// Normalizer maps a raw value to its key; false means Absent.
type Normalizer func(string) (string, bool)

var registry = map[Kind]Normalizer{
	KindText:  Text,
	KindURL:   URL,
	KindPhone: Phone,
	KindID:    ID,
}

func get(kind Kind) (Normalizer, bool) {
	fn, ok := registry[kind]
	return fn, ok
}

// Keys returns every comparable key raw produces under kind. Single-valued kinds yield at
// most one key; phone lists yield one per distinct number. An Absent value yields none.
func Keys(kind Kind, raw string) []string {
	if kind == KindPhoneList {
		return PhoneList(raw)
	}
	fn, ok := get(kind)
	if !ok {
		panic(fmt.Sprintf("normalize: unknown kind %q", kind))
	}
	if key, ok := fn(raw); ok {
		return []string{key}
	}
	return nil
}
