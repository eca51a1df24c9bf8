package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/dgallion1/doctrans/internal/batch"
	"github.com/dgallion1/doctrans/internal/source"
	"github.com/dgallion1/doctrans/internal/translate"
)

var (
	outputPath      string
	copyUnsupported bool
)

var translateCmd = &cobra.Command{
	Use:   "translate <file-or-directory>",
	Short: "Translate a document or a whole directory tree",
	Long: `Translate a single document to HTML on stdout (or --out), or mirror a
directory tree into --out with every supported file translated. Outputs
that already exist in the target tree are skipped, so an interrupted
batch run can be resumed.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		log := newLogger()
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		tr, client := buildTranslator(cfg, log)
		defer client.Close()

		in := args[0]
		info, err := os.Stat(in)
		if err != nil {
			return err
		}

		if info.IsDir() {
			if outputPath == "" {
				return fmt.Errorf("--out is required when translating a directory")
			}
			runner := batch.NewRunner(tr, batch.Config{
				InDir:              in,
				OutDir:             outputPath,
				MaxConcurrentFiles: cfg.MaxConcurrentFiles,
				CopyUnsupported:    copyUnsupported,
			}, log)
			res, err := runner.Run(cmd.Context())
			if err != nil {
				return err
			}
			if res.Failed > 0 {
				return fmt.Errorf("%d file(s) failed", res.Failed)
			}
			return nil
		}

		return translateOne(cmd, tr, in)
	},
}

func init() {
	translateCmd.Flags().StringVarP(&outputPath, "out", "o", "", "output file or directory")
	translateCmd.Flags().BoolVar(&copyUnsupported, "copy-unsupported", false, "copy unsupported files into the output tree")
}

func translateOne(cmd *cobra.Command, tr *translate.Translator, in string) error {
	loader, err := source.ForFile(in)
	if err != nil {
		return err
	}
	f, err := os.Open(in)
	if err != nil {
		return err
	}
	doc, err := loader.Load(f, filepath.Base(in))
	f.Close()
	if err != nil {
		return err
	}

	statuses := tr.TranslateTree(cmd.Context(), doc)
	tally := translate.CountStatuses(statuses)
	fmt.Fprintf(cmd.ErrOrStderr(), "groups: %d success, %d compromise, %d fail\n",
		tally.Success, tally.Compromise, tally.Fail)

	out := cmd.OutOrStdout()
	if outputPath != "" {
		of, err := os.Create(outputPath)
		if err != nil {
			return err
		}
		defer of.Close()
		out = of
	}
	return doc.Render(out)
}
