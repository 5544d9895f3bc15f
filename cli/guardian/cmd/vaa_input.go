package cmd

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/alphabill-org/guardian-core/types"
)

/*
readVAAArg returns wire encoded VAA from the command argument. The argument
is either hex string (optional 0x prefix) or "@" followed by file name. File
may contain hex or binary VAA, content starting with the VAA version byte is
binary and anything else must be hex text.
*/
func readVAAArg(arg string) ([]byte, error) {
	if name, ok := strings.CutPrefix(arg, "@"); ok {
		b, err := os.ReadFile(filepath.Clean(name))
		if err != nil {
			return nil, fmt.Errorf("reading VAA file: %w", err)
		}
		if len(b) > 0 && b[0] == types.SupportedVAAVersion {
			return b, nil
		}
		raw, err := decodeHex(string(bytes.TrimSpace(b)))
		if err != nil {
			return nil, fmt.Errorf("invalid VAA file %s: %w", name, err)
		}
		return raw, nil
	}
	raw, err := decodeHex(strings.TrimSpace(arg))
	if err != nil {
		return nil, fmt.Errorf("invalid VAA argument: %w", err)
	}
	return raw, nil
}

func decodeHex(s string) ([]byte, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if s == "" {
		return nil, fmt.Errorf("empty hex string")
	}
	return hex.DecodeString(s)
}

func printJSON(v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding output: %w", err)
	}
	consoleWriter.Println(string(b))
	return nil
}
