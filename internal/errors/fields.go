package errors

// FieldErrors maps a request field to its validation messages, the shape
// {"field": ["message"]} that the API returns for invalid input.
type FieldErrors map[string][]string

const NonFieldErrors = "non_field_errors"

func (f FieldErrors) Add(field, message string) {
	f[field] = append(f[field], message)
}

func (f FieldErrors) Empty() bool {
	return len(f) == 0
}

// Fields builds a validation error whose message is the first field error in
// the same order clients extract it.
func Fields(fields FieldErrors) *AppError {
	converted := make(map[string]any, len(fields))
	for k, v := range fields {
		entries := make([]any, len(v))
		for i, s := range v {
			entries[i] = s
		}
		converted[k] = entries
	}
	message := firstFieldError(converted)
	if message == "" {
		message = "Invalid input"
	}
	return ValidationError(message).WithDetails(fields)
}
