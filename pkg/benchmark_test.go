package fdedup

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"
)

// BenchmarkConfig defines the parameters for performance benchmarks
type BenchmarkConfig struct {
	TotalFiles     int   // Total number of files to generate
	LargeFiles     int   // Number of large files (>1MB)
	LargeFileSize  int64 // Size of large files in bytes
	SmallFileSize  int64 // Size of small files in bytes
	DirDepth       int   // Maximum directory depth
	FilesPerDir    int   // Average files per directory
	DuplicateEvery int   // Every Nth file repeats the content of the file before it
}

// Standard benchmark configurations
var (
	// Small benchmark for development/CI
	SmallBenchConfig = BenchmarkConfig{
		TotalFiles:     1000,
		LargeFiles:     50,
		LargeFileSize:  2 * 1024 * 1024, // 2MB
		SmallFileSize:  4 * 1024,        // 4KB
		DirDepth:       3,
		FilesPerDir:    20,
		DuplicateEvery: 5,
	}

	// Medium benchmark for regular testing
	MediumBenchConfig = BenchmarkConfig{
		TotalFiles:     100000,
		LargeFiles:     1000,
		LargeFileSize:  5 * 1024 * 1024, // 5MB
		SmallFileSize:  8 * 1024,        // 8KB
		DirDepth:       5,
		FilesPerDir:    50,
		DuplicateEvery: 10,
	}
)

// generateDeterministicData creates deterministic file content based on seed
func generateDeterministicData(size int64, seed int64) []byte {
	data := make([]byte, size)

	// Use seed to create deterministic but varied content
	for i := int64(0); i < size; i++ {
		// Simple PRNG based on linear congruential generator
		seed = (seed*1103515245 + 12345) & 0x7fffffff
		data[i] = byte(seed >> 16)
	}

	return data
}

// createBenchmarkDataset generates a deterministic test dataset and returns
// the number of files that share their content with another file.
func createBenchmarkDataset(rootDir string, config BenchmarkConfig) (int, error) {
	if err := os.RemoveAll(rootDir); err != nil {
		return 0, fmt.Errorf("failed to clean root dir: %w", err)
	}
	if err := os.MkdirAll(rootDir, 0755); err != nil {
		return 0, fmt.Errorf("failed to create root dir: %w", err)
	}

	largeFileInterval := 0
	if config.LargeFiles > 0 {
		largeFileInterval = config.TotalFiles / config.LargeFiles
	}

	duplicates := 0
	var previous []byte
	for fileIndex := 0; fileIndex < config.TotalFiles; fileIndex++ {
		// spread directories over the configured depth
		dirNum := fileIndex / config.FilesPerDir
		pathParts := []string{rootDir}
		for l := 1; l <= dirNum%(config.DirDepth+1); l++ {
			pathParts = append(pathParts, fmt.Sprintf("level%d_dir%d", l, dirNum%(1<<l)))
		}
		dirPath := filepath.Join(pathParts...)
		if err := os.MkdirAll(dirPath, 0755); err != nil {
			return 0, fmt.Errorf("failed to create dir %s: %w", dirPath, err)
		}

		var data []byte
		switch {
		case config.DuplicateEvery > 0 && fileIndex%config.DuplicateEvery == config.DuplicateEvery-1 && previous != nil:
			data = previous
			duplicates++
		case largeFileInterval > 0 && fileIndex%largeFileInterval == 0:
			data = generateDeterministicData(config.LargeFileSize, int64(fileIndex*12345+67890+999999))
		default:
			data = generateDeterministicData(config.SmallFileSize, int64(fileIndex*12345+67890))
		}
		previous = data

		filePath := filepath.Join(dirPath, fmt.Sprintf("file_%06d.dat", fileIndex))
		if err := os.WriteFile(filePath, data, 0644); err != nil {
			return 0, fmt.Errorf("failed to write file %s: %w", filePath, err)
		}
	}

	return duplicates, nil
}

// BenchmarkScanSmall benchmarks a full scan of the small dataset
func BenchmarkScanSmall(b *testing.B) {
	benchmarkScan(b, SmallBenchConfig)
}

// BenchmarkScanMedium benchmarks a full scan of the medium dataset
func BenchmarkScanMedium(b *testing.B) {
	if testing.Short() {
		b.Skip("Skipping medium benchmark in short mode")
	}
	benchmarkScan(b, MediumBenchConfig)
}

func benchmarkScan(b *testing.B, config BenchmarkConfig) {
	datasetDir := filepath.Join(b.TempDir(), "dataset")

	b.Logf("Creating benchmark dataset: %d files (%d large, %d small)",
		config.TotalFiles, config.LargeFiles, config.TotalFiles-config.LargeFiles)

	b.StopTimer()
	start := time.Now()
	duplicates, err := createBenchmarkDataset(datasetDir, config)
	if err != nil {
		b.Fatalf("Failed to create benchmark dataset: %v", err)
	}
	b.Logf("Dataset creation took: %v", time.Since(start))
	b.StartTimer()

	scanner, err := NewScanner(DefaultScanConfig())
	if err != nil {
		b.Fatalf("NewScanner failed: %v", err)
	}

	for i := 0; i < b.N; i++ {
		scanStart := time.Now()
		outcome, err := scanner.Scan(context.Background(), datasetDir)
		if err != nil {
			b.Fatalf("Scan failed: %v", err)
		}
		scanDuration := time.Since(scanStart)

		st := outcome.Stats
		if st.FilesHashed != int64(config.TotalFiles) {
			b.Errorf("Expected %d files, got %d", config.TotalFiles, st.FilesHashed)
		}
		if st.Groups != duplicates {
			b.Errorf("Expected %d duplicate groups, got %d", duplicates, st.Groups)
		}

		hashingRate := float64(st.BytesHashed) / scanDuration.Seconds() / (1024 * 1024) // MB/s
		fileRate := float64(st.FilesHashed) / scanDuration.Seconds()                   // files/s
		b.Logf("Performance: %.2f MB/s hashing rate, %.0f files/s, %v total time (peak dirs %d, peak files %d)",
			hashingRate, fileRate, scanDuration, st.PeakDirs, st.PeakFiles)
	}
}

// BenchmarkIndexRecord benchmarks concurrent inserts into the sharded index
func BenchmarkIndexRecord(b *testing.B) {
	digests := make([]Digest, 4096)
	for i := range digests {
		digests[i] = DigestOf([]byte(fmt.Sprint(i % 2048)))
	}

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		ix := NewIndex()
		i := 0
		for pb.Next() {
			ix.Record(digests[i%len(digests)], uint64(i), "path", 1)
			i++
		}
	})
}

// BenchmarkMemoryUsage benchmarks memory retained by a scan's results
func BenchmarkMemoryUsage(b *testing.B) {
	if testing.Short() {
		b.Skip("Skipping memory benchmark in short mode")
	}

	config := SmallBenchConfig
	datasetDir := filepath.Join(b.TempDir(), "dataset")

	b.StopTimer()
	if _, err := createBenchmarkDataset(datasetDir, config); err != nil {
		b.Fatalf("Failed to create benchmark dataset: %v", err)
	}
	scanner, err := NewScanner(DefaultScanConfig())
	if err != nil {
		b.Fatalf("NewScanner failed: %v", err)
	}
	b.StartTimer()

	for i := 0; i < b.N; i++ {
		b.StopTimer()
		runtime.GC()
		var m1 runtime.MemStats
		runtime.ReadMemStats(&m1)
		b.StartTimer()

		outcome, err := scanner.Scan(context.Background(), datasetDir)
		if err != nil {
			b.Fatalf("Scan failed: %v", err)
		}

		b.StopTimer()
		runtime.GC()
		var m2 runtime.MemStats
		runtime.ReadMemStats(&m2)

		memoryUsed := float64(m2.HeapAlloc) - float64(m1.HeapAlloc)
		b.ReportMetric(memoryUsed/(1024*1024), "MB_used")
		b.ReportMetric(memoryUsed/float64(config.TotalFiles), "bytes_per_file")
		runtime.KeepAlive(outcome)
		b.StartTimer()
	}
}
