package main

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"digital-twin-search/models"
	"digital-twin-search/services"
)

// extractionFile is the on-disk form accepted by --load and the index
// command. JSON files parse as YAML.
type extractionFile struct {
	Extractions []models.ChapterExtraction `yaml:"extractions"`
	Slices      []models.ChapterSlice      `yaml:"slices"`
}

func readExtractionFile(path string) ([]models.ChapterSlice, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading %s: %w", path, err)
	}
	var f extractionFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("error parsing %s: %w", path, err)
	}
	slices := f.Slices
	for _, ext := range f.Extractions {
		slices = append(slices, services.SlicesFromExtraction(ext)...)
	}
	if len(slices) == 0 {
		return nil, fmt.Errorf("%s contains no extractions or slices", path)
	}
	return slices, nil
}

func readExtractionFiles(paths []string) ([]models.ChapterSlice, error) {
	var all []models.ChapterSlice
	for _, p := range paths {
		slices, err := readExtractionFile(p)
		if err != nil {
			return nil, err
		}
		all = append(all, slices...)
	}
	return all, nil
}

func indexFiles(ctx context.Context, ix *services.ChapterIndexer, paths []string) (models.BatchIndexResult, error) {
	slices, err := readExtractionFiles(paths)
	if err != nil {
		return models.BatchIndexResult{}, err
	}
	return ix.IndexSlices(ctx, slices), nil
}
