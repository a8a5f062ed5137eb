// Package integrity хэши шагов каскада и контрольная сумма результата спина.
package integrity

import (
	"encoding/binary"
	"encoding/hex"

	jsoniter "github.com/json-iterator/go"
	"golang.org/x/crypto/blake2b"

	"infinity_stones/internal/model"
)

var canonical = jsoniter.Config{
	EscapeHTML:             true,
	SortMapKeys:            true,
	ValidateJsonRawMessage: true,
}.Froze()

// GridBytes каноническое представление поля:
// rows, cols (uint16 BE), затем символы построчно (int16 BE)
func GridBytes(g model.Grid) []byte {
	rows, cols := g.Rows(), g.Cols()
	out := make([]byte, 4, 4+rows*cols*2)
	binary.BigEndian.PutUint16(out[0:], uint16(rows))
	binary.BigEndian.PutUint16(out[2:], uint16(cols))
	for _, row := range g {
		for _, s := range row {
			out = binary.BigEndian.AppendUint16(out, uint16(int16(s)))
		}
	}
	return out
}

// GridHash hex(BLAKE2b-256) канонического поля. Клиент считает так же
func GridHash(g model.Grid) string {
	sum := blake2b.Sum256(GridBytes(g))
	return hex.EncodeToString(sum[:])
}

// Checksum контрольная сумма результата целиком, поле Checksum не участвует
func Checksum(res model.CascadeSpinResult) (string, error) {
	res.Checksum = ""
	b, err := canonical.Marshal(res)
	if err != nil {
		return "", err
	}
	sum := blake2b.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}

// Seal проставляет контрольную сумму
func Seal(res *model.CascadeSpinResult) error {
	sum, err := Checksum(*res)
	if err != nil {
		return err
	}
	res.Checksum = sum
	return nil
}
