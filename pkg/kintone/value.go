package kintone

// StringValue returns the field's value when it is a string, "" otherwise.
// The records API reports every text field as {"type": ..., "value": "..."}.
func (f Field) StringValue() string {
	s, _ := f.Value.(string)
	return s
}
