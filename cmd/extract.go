package cmd

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/legal-ner/ner-adapt/adapt"
)

// extractCmd dumps hidden features of every labelled token
var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Dump per-token embeddings of the source, target and validation splits",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := resolveRunConfig(cmd.Flags())
		if err != nil {
			logrus.Fatalf("Invalid run config: %v", err)
		}
		outDir, _ := cmd.Flags().GetString("out-dir")
		if outDir == "" {
			outDir = cfg.Run.LogDir
		}
		paths, err := runExtract(cfg, outDir)
		if err != nil {
			logrus.Fatalf("Extraction failed: %v", err)
		}
		for _, p := range paths {
			logrus.Infof("Wrote %s", p)
		}
	},
}

// embeddingRecord is one line of an embedding dump.
type embeddingRecord struct {
	Embedding []float64 `json:"embedding"`
	Label     int       `json:"label"`
}

// EmbeddingFileName names the dump of one split.
func EmbeddingFileName(split string) string {
	return fmt.Sprintf("embeddings_%s.jsonl", split)
}

// runExtract embeds every split in fixed order and writes one JSONL file per
// split into outDir. Ignored tokens are skipped.
func runExtract(cfg RunConfig, outDir string) ([]string, error) {
	src, tgt, err := labelSets(cfg)
	if err != nil {
		return nil, err
	}
	if cfg.Run.ResumeFrom == "" {
		logrus.Warn("No --resume-from given; extracting embeddings of an untrained classifier")
	}
	clf, _, err := buildClassifier(cfg, src.Len(), cfg.Run.ResumeFrom)
	if err != nil {
		return nil, err
	}
	emb, ok := clf.(adapt.Embedder)
	if !ok {
		return nil, fmt.Errorf("classifier variant %q cannot produce embeddings", cfg.Model.Variant)
	}
	clf.SetTraining(false)
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	rng := adapt.NewPartitionedRNG(cfg.Run.Seed)
	var paths []string
	for _, spec := range splitSpecs(cfg, src, tgt) {
		spec.shuffle = false
		ds, err := loadSplit(cfg, spec, rng)
		if err != nil {
			return paths, err
		}
		path := filepath.Join(outDir, EmbeddingFileName(spec.name))
		n, err := writeEmbeddings(path, emb, ds)
		if err != nil {
			return paths, fmt.Errorf("%s split: %w", spec.name, err)
		}
		logrus.Infof("Extracted %d %s embeddings", n, spec.name)
		paths = append(paths, path)
	}
	return paths, nil
}

func writeEmbeddings(path string, emb adapt.Embedder, ds adapt.Dataset) (n int, err error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)

	pass := ds.Iter()
	defer pass.Close()
	for {
		b, ok, err := pass.Next()
		if err != nil {
			return n, err
		}
		if !ok {
			break
		}
		h, err := emb.Embed(b)
		if err != nil {
			return n, err
		}
		for i, label := range b.Labels {
			if label == adapt.IgnoreLabel {
				continue
			}
			if err := enc.Encode(embeddingRecord{Embedding: h.RawRowView(i), Label: label}); err != nil {
				return n, err
			}
			n++
		}
	}
	return n, w.Flush()
}
