package req

import (
	"io"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Decode тело запроса в T. Пустое тело: нулевое значение
func Decode[T any](body io.Reader) (T, error) {
	var payload T
	err := json.NewDecoder(body).Decode(&payload)
	if err == io.EOF {
		return payload, nil
	}
	return payload, err
}
