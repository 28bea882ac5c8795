package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/migrate-cli/internal/convert"
	"github.com/sells-group/migrate-cli/internal/refindex"
)

var convertCmd = &cobra.Command{
	Use:   "convert",
	Short: "Convert one value read from stdin",
	Long:  "Classifies the value on stdin (or takes --from), converts it into the --to destination type and prints the result. JSON objects on stdin are read as documents.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		from, _ := cmd.Flags().GetString("from")
		to, _ := cmd.Flags().GetString("to")
		indexDir, _ := cmd.Flags().GetString("index-dir")

		ix := refindex.Empty()
		if indexDir != "" {
			var err error
			if ix, err = refindex.LoadDir(indexDir); err != nil {
				return err
			}
		}

		in, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return eris.Wrap(err, "convert: read stdin")
		}
		out, err := convertValue(ix, in, convert.FieldTypeTag(from), convert.TargetType(to))
		if err != nil {
			return err
		}
		return printValue(cmd.OutOrStdout(), out)
	},
}

func init() {
	convertCmd.Flags().String("from", "", "source tag (single_line, multi_line, html, rich_document); classified when empty")
	convertCmd.Flags().String("to", string(convert.TargetRichDocument), "destination type")
	convertCmd.Flags().String("index-dir", "", "reference index feed directory for resolving embedded references")
	rootCmd.AddCommand(convertCmd)
}

// convertValue decodes raw input and converts it. Conversions the policy
// denies are errors here rather than pass-throughs.
func convertValue(ix *refindex.Index, in []byte, from convert.FieldTypeTag, to convert.TargetType) (any, error) {
	var v any = string(bytes.TrimRight(in, "\n"))
	if trimmed := bytes.TrimSpace(in); len(trimmed) > 0 && trimmed[0] == '{' {
		var obj map[string]any
		if err := json.Unmarshal(trimmed, &obj); err != nil {
			return nil, eris.Wrap(err, "convert: decode document")
		}
		v = obj
	}
	_, isText := v.(string)
	switch {
	case from == "":
		from = convert.Classify(v)
	case from == convert.TagRichDocument && isText, from != convert.TagRichDocument && !isText:
		return nil, eris.Errorf("convert: input does not match --from %s", from)
	}
	if !convert.Allowed(from, to) {
		return nil, eris.Errorf("convert: %s cannot be converted to %s", from, to)
	}
	out, ok := convert.New(ix).Convert(convert.Context{Field: "stdin"}, v, from, convert.TargetSpec{Type: to})
	if !ok {
		return nil, eris.Errorf("convert: value produced no %s output", to)
	}
	return out, nil
}

func printValue(w io.Writer, v any) error {
	if s, ok := v.(string); ok {
		_, err := fmt.Fprintln(w, s)
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
