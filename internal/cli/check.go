package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mgpai22/subocr/internal/language"
	"github.com/mgpai22/subocr/internal/srtcheck"
)

var checkCmd = &cobra.Command{
	Use:   "check <file.srt>",
	Short: "Fix common OCR mistakes in a SubRip file",
	Long: `Apply the OCR fix rules to an existing SubRip file in place. Running the
command twice on the same file changes nothing the second time.`,
	Args: cobra.ExactArgs(1),
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)

	checkCmd.Flags().
		Bool("dry-run", false, "Report fixes without writing the file")
	checkCmd.Flags().
		StringP("language", "l", "", "Subtitle language, enables language specific rules")
}

func runCheck(cmd *cobra.Command, args []string) error {
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	lang := cfg.OCR.DefaultLanguage
	if cmd.Flags().Changed("language") {
		v, _ := cmd.Flags().GetString("language")
		lang = language.Normalize(v)
	}

	findings, err := srtcheck.New(lang, logger).CheckFile(args[0], dryRun)
	if err != nil {
		return err
	}

	if len(findings) == 0 {
		fmt.Println("No fixes needed")
		return nil
	}

	counts := make(map[string]int)
	var order []string
	for _, f := range findings {
		if _, ok := counts[f.Rule]; !ok {
			order = append(order, f.Rule)
		}
		counts[f.Rule] += f.Count
	}
	rows := make([][]string, 0, len(order))
	total := 0
	for _, rule := range order {
		rows = append(rows, []string{rule, fmt.Sprintf("%d", counts[rule])})
		total += counts[rule]
	}
	fmt.Println(renderTable([]string{"Rule", "Fixes"}, rows, []columnAlignment{alignLeft, alignRight}))

	if dryRun {
		fmt.Printf("%d fixes found (dry run, file unchanged)\n", total)
	} else {
		fmt.Printf("%d fixes applied to %s\n", total, args[0])
	}
	return nil
}
