package settings

// Secret variables are not shown in the printed settings or in logs.
type Secret string

const secretMask = "*****"

// String implements fmt.Stringer.String.
// When a Secret is printed, regardless of its value, it prints `*****`.
func (s Secret) String() string {
	if s == "" {
		return ""
	}
	return secretMask
}
