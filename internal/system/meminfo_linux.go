package system

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

func getRAMInfo() (RAMInfo, error) {
	file, err := os.Open("/proc/meminfo")
	if err != nil {
		return RAMInfo{}, fmt.Errorf("failed to open /proc/meminfo: %w", err)
	}
	defer file.Close()

	return parseMeminfo(file)
}

// parseMeminfo reads MemTotal and MemAvailable (in kB) from r
func parseMeminfo(r io.Reader) (RAMInfo, error) {
	var totalKB, availableKB int64
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 {
			continue
		}
		value, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			continue
		}

		switch strings.TrimSuffix(fields[0], ":") {
		case "MemTotal":
			totalKB = value
		case "MemAvailable":
			availableKB = value
		}
	}
	if err := scanner.Err(); err != nil {
		return RAMInfo{}, fmt.Errorf("failed to read meminfo: %w", err)
	}
	if totalKB == 0 {
		return RAMInfo{}, fmt.Errorf("could not determine total RAM")
	}

	return RAMInfo{
		TotalBytes:     totalKB * 1024,
		AvailableBytes: availableKB * 1024,
	}, nil
}
