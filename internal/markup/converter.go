package markup

import "errors"

// ErrConversionFailed wraps failures of the optional external converter.
var ErrConversionFailed = errors.New("bbcode conversion failed")

// Converter is the optional external bbcode-to-markdown converter, enabled by
// feature flag. Implementations must be safe to call per post.
type Converter interface {
	Convert(text string) (string, error)
}

// ConverterFunc adapts a function to the Converter interface.
type ConverterFunc func(string) (string, error)

func (f ConverterFunc) Convert(text string) (string, error) { return f(text) }

// convertWithFallback applies conv and falls back to the untouched text when
// conversion fails or panics; a single bad post never aborts the run.
func convertWithFallback(conv Converter, text string) (out string) {
	if conv == nil {
		return text
	}
	out = text
	defer func() {
		if r := recover(); r != nil {
			out = text
		}
	}()
	converted, err := conv.Convert(text)
	if err != nil {
		return text
	}
	return converted
}
