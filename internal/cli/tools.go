package cli

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/mgpai22/subocr/internal/tools"
)

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "Show which external programs were found",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(toolsTable(tools.Status()))
	},
}

var toolsInstallCmd = &cobra.Command{
	Use:   "install",
	Short: "Download ffmpeg and ffprobe into the user cache directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger.Infow("downloading ffmpeg")
		dir, err := tools.InstallFFmpeg(cmd.Context(), progressWriter())
		if err != nil {
			return err
		}
		fmt.Printf("Installed ffmpeg and ffprobe to %s\n", dir)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(toolsCmd)
	toolsCmd.AddCommand(toolsInstallCmd)
}

func toolsTable(status map[string]error) string {
	names := make([]string, 0, len(status))
	for name := range status {
		names = append(names, name)
	}
	sort.Strings(names)

	rows := make([][]string, 0, len(names))
	for _, name := range names {
		state := "found"
		if err := status[name]; err != nil {
			state = err.Error()
		}
		rows = append(rows, []string{name, state})
	}
	return renderTable([]string{"Tool", "Status"}, rows, nil)
}

func jsonIndent(v any) ([]byte, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode JSON: %w", err)
	}
	return data, nil
}
