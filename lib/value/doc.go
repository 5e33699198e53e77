// Package value implements the typed values stored by qKV and their binary
// encoding.
//
// A Value is a tagged union over Null, String, Int, Float, Bool, Bytes, Hash
// (string to string map) and Seq (an ordered list whose elements all share one
// kind). Every value encodes to a single kind byte followed by a big endian,
// length prefixed payload. The encoding is canonical: hash keys are written in
// sorted order, so equal values produce equal bytes and Decode(Encode(v))
// equals v.
//
// Reading a value never panics. The accessors (AsString, AsInt, ...) return a
// *MismatchError, which matches ErrTypeMismatch, when the value holds another
// kind. Malformed bytes are reported with errors matching ErrCodec.
//
// Conversions between Go types and values are explicit Codec[T] values:
//
//	v, _ := value.Strings.ToValue("hello world!")
//	s, err := value.Strings.FromValue(v)
//
//	books := value.SeqOf(value.KindString, value.Strings)
//	type User struct{ Name string }
//	users := value.JSON[User]()
package value
