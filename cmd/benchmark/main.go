package main

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/limaJavier/timetabler/internal/snapshot"
	"github.com/limaJavier/timetabler/pkg/model"
	"github.com/samber/lo"
)

const (
	executablePath         = "../../bin/timetabler"
	attemptTimeout         = "60s"
	MB             float32 = 1024 * 1024
)

type ModeType int

const (
	rebuild ModeType = iota
	bestEffort
)

type ResultType int

const (
	solved ResultType = iota
	infeasible
	timeout
)

var (
	modeTypes = map[ModeType]string{
		rebuild:    "rebuild",
		bestEffort: "best-effort",
	}
	resultTypes = map[ResultType]string{
		solved:     "solved",
		infeasible: "infeasible",
		timeout:    "timeout",
	}
)

type TestMetadata struct {
	Name     string
	Classes  int
	Teachers int
	Rooms    int
	Blocks   int
	Hours    int
}

type BenchmarkResult struct {
	Mode          ModeType
	Retention     string
	Test          TestMetadata
	Duration      int64
	Memory        float32
	CpuPercentage int64
	Result        ResultType
}

func main() {
	directory, err := os.MkdirTemp("", "timetabler-benchmark-")
	if err != nil {
		log.Fatalf("cannot create working directory: %v", err)
	}
	defer os.RemoveAll(directory)

	tests := getTests(directory)
	modes := []ModeType{rebuild, bestEffort}
	retentions := []string{"clear-all", "keep-current"}
	results := make([]BenchmarkResult, 0, len(tests)*len(modes)*len(retentions))

	for _, test := range tests {
		for _, mode := range modes {
			for _, retention := range retentions {
				fmt.Printf("Benchmarking school \"%v\" with mode \"%v\" and retention \"%v\"\n", test.Name, modeTypes[mode], retention)

				duration, maxMemory, cpuPercentage, result := measure(mode, retention, test.Name)

				results = append(results, BenchmarkResult{
					Mode:          mode,
					Retention:     retention,
					Test:          test,
					Duration:      duration,
					Memory:        maxMemory,
					CpuPercentage: cpuPercentage,
					Result:        result,
				})
			}
		}
	}

	toCsv(results)
}

// getTests generates every synthetic school into directory
func getTests(directory string) []TestMetadata {
	tests := make([]TestMetadata, 0, len(schools))
	for _, school := range schools {
		state, err := generate(school)
		if err != nil {
			log.Fatalf("cannot generate school %q: %v", school.Name, err)
		}

		filename := filepath.Join(directory, school.Name+".json")
		if err := snapshot.Write(filename, state); err != nil {
			log.Fatalf("cannot write school %q: %v", school.Name, err)
		}

		tests = append(tests, TestMetadata{
			Name:     filename,
			Classes:  len(state.Classes),
			Teachers: len(state.Teachers),
			Rooms:    len(state.Rooms),
			Blocks:   len(state.Blocks),
			Hours:    lo.SumBy(state.Blocks, func(block model.Block) int { return block.Duration }),
		})
	}
	return tests
}

func measure(mode ModeType, retention string, testFile string) (duration int64, maxMemory float32, cpuPercentage int64, result ResultType) {
	cmd := exec.Command("/usr/bin/time", "-v", executablePath, modeTypes[mode], "--file", testFile, "--retention", retention, "--timeout", attemptTimeout)

	var stdOut bytes.Buffer
	cmd.Stdout = &stdOut
	var stdErr bytes.Buffer
	cmd.Stderr = &stdErr

	cmd.Run()
	switch exitCode := cmd.ProcessState.ExitCode(); {
	case exitCode == 10:
		result = solved
	case exitCode == 20:
		result = infeasible
	case strings.Contains(stdErr.String(), "SOLVER_TIMEOUT"):
		result = timeout
	default:
		log.Fatalf("an error occurred during the execution of \"timetabler\" at test \"%v\" using mode \"%v\", retention \"%v\": %v\n", testFile, modeTypes[mode], retention, stdErr.String())
	}

	splits := strings.Split(stdErr.String(), "\n")
	getLine := func(substr string) string {
		line, ok := lo.Find(splits, func(line string) bool {
			return strings.Contains(strings.ToLower(line), substr)
		})
		if !ok {
			log.Fatalf("Substring \"%v\" could not be found", substr)
		}
		return line
	}

	duration = parseDurationLine(getLine("wall clock"))
	maxMemory = parseMemoryLine(getLine("maximum resident set size"))
	cpuPercentage = parseCpuPercentageLine(getLine("percent of cpu"))

	return duration, maxMemory, cpuPercentage, result
}

func toCsv(results []BenchmarkResult) {
	file, err := os.Create("benchmark_results.csv")
	if err != nil {
		log.Panicf("cannot create CSV file: %v", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"Mode", "Retention", "School", "Classes", "Teachers", "Rooms", "Blocks", "Hours", "Duration(ms)", "Memory(MB)", "CPU(%)", "Result"}
	if err := writer.Write(header); err != nil {
		log.Panicf("cannot write CSV header: %v", err)
	}

	for _, result := range results {
		record := []string{
			modeTypes[result.Mode],
			result.Retention,
			filepath.Base(result.Test.Name),
			fmt.Sprintf("%d", result.Test.Classes),
			fmt.Sprintf("%d", result.Test.Teachers),
			fmt.Sprintf("%d", result.Test.Rooms),
			fmt.Sprintf("%d", result.Test.Blocks),
			fmt.Sprintf("%d", result.Test.Hours),
			fmt.Sprintf("%d", result.Duration),
			fmt.Sprintf("%.1f", result.Memory),
			fmt.Sprintf("%d", result.CpuPercentage),
			resultTypes[result.Result],
		}
		if err := writer.Write(record); err != nil {
			log.Panicf("cannot write CSV record: %v", err)
		}
	}
}

func parseDurationLine(line string) int64 {
	durationStr := strings.Split(line, "(h:mm:ss or m:ss):")[1][1:]
	return parseDuration(durationStr)
}

func parseDuration(durationStr string) int64 {
	parts := strings.Split(durationStr, ":")
	secondsParts := strings.Split(parts[len(parts)-1], ".")

	var hours, minutes int
	switch len(parts) {
	case 3: // h:mm:ss
		hours = lo.Must(strconv.Atoi(parts[0]))
		minutes = lo.Must(strconv.Atoi(parts[1]))
	case 2: // m:ss
		minutes = lo.Must(strconv.Atoi(parts[0]))
	default:
		log.Fatalf("unexpected duration format: %v", durationStr)
	}
	seconds := lo.Must(strconv.Atoi(secondsParts[0]))
	hundredthOfSeconds := lo.Must(strconv.Atoi(secondsParts[1]))
	return int64(hours*3600+minutes*60+seconds)*1000 + int64(hundredthOfSeconds*10)
}

// parseMemoryLine converts the resident set size reported in KB into MB
func parseMemoryLine(line string) float32 {
	memoryStr := strings.Split(line, ":")[1][1:]
	return float32(lo.Must(strconv.ParseFloat(memoryStr, 32))) * 1024 / MB
}

func parseCpuPercentageLine(line string) int64 {
	percentageStr := strings.Split(line, ":")[1][1:]
	percentageStr = strings.TrimSuffix(percentageStr, "%")
	return int64(lo.Must(strconv.Atoi(percentageStr)))
}
