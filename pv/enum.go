package pv

import "fmt"

// DecodeLabel maps a raw enum index to its label through a table obtained
// from Channel.EnumLabels. Comparisons throughout go-beamline are made on
// decoded labels, never on raw indices, because enum ordering is a
// control-system configuration detail.
func DecodeLabel(labels []string, raw int32) (string, error) {
	if raw < 0 || int(raw) >= len(labels) {
		return "", fmt.Errorf("%w: index %d with %d labels", ErrLabelIndex, raw, len(labels))
	}

	return labels[raw], nil
}

// EncodeLabel maps a label to its raw enum index through a table obtained
// from Channel.EnumLabels.
func EncodeLabel(labels []string, label string) (int32, error) {
	for i, l := range labels {
		if l == label {
			return int32(i), nil
		}
	}

	return 0, fmt.Errorf("%w: %q", ErrUnknownLabel, label)
}
