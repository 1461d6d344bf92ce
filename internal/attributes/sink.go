package attributes

// Sink receives attribute key/value pairs.
type Sink interface {
	SetUserString(key, value string)
}

// MapSink is a Sink backed by a plain map.
type MapSink map[string]string

// SetUserString implements Sink.
func (m MapSink) SetUserString(key, value string) {
	m[key] = value
}

// Emit writes the whole set into every sink, in key order, so that all sinks
// end up with identical content.
func Emit(set *Set, sinks ...Sink) {
	for _, key := range set.Keys() {
		value := set.values[key]
		for _, sink := range sinks {
			sink.SetUserString(key, value)
		}
	}
}
