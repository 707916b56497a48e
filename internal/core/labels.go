package core

// AddLabel appends an enabled label with the given key and an empty value. Empty keys
// and keys already present are ignored.
func AddLabel(labels []Label, key string) ([]Label, bool) {
	if key == "" || labelIndex(labels, key) >= 0 {
		return labels, false
	}
	out := make([]Label, len(labels), len(labels)+1)
	copy(out, labels)
	return append(out, Label{Key: key, Enabled: true}), true
}

// ToggleLabel flips Enabled on the first label matching key.
func ToggleLabel(labels []Label, key string) ([]Label, bool) {
	return replaceLabel(labels, key, func(l Label) Label {
		l.Enabled = !l.Enabled
		return l
	})
}

// SetLabelValue replaces the value of the first label matching key.
func SetLabelValue(labels []Label, key, value string) ([]Label, bool) {
	return replaceLabel(labels, key, func(l Label) Label {
		l.Value = value
		return l
	})
}

func replaceLabel(labels []Label, key string, fn func(Label) Label) ([]Label, bool) {
	idx := labelIndex(labels, key)
	if idx < 0 {
		return labels, false
	}
	out := make([]Label, len(labels))
	copy(out, labels)
	out[idx] = fn(out[idx])
	return out, true
}

func labelIndex(labels []Label, key string) int {
	for i, l := range labels {
		if l.Key == key {
			return i
		}
	}
	return -1
}
