package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	neturl "net/url"
	"os"
	"path/filepath"
	"strconv"

	"filedrop/chunk"

	"github.com/gookit/color"
	"github.com/olekukonko/tablewriter"
)

// sendfile is a test client: it splits a local file into byte-range
// chunks, uploads them (optionally in shuffled order to exercise the
// server's out-of-order handling) and prints the device's file table.
func main() {
	server := flag.String("server", "http://localhost:8080", "Server base URL")
	file := flag.String("file", "", "Local file to upload")
	name := flag.String("name", "", "Remote filename (defaults to the local basename)")
	device := flag.String("device", "", "Device name")
	password := flag.String("password", "", "Device password")
	register := flag.Bool("register", false, "Register the device before uploading")
	chunkSize := flag.Int64("chunk-size", 1<<20, "Chunk payload size in bytes")
	shuffle := flag.Bool("shuffle", false, "Upload chunks in random order")
	flag.Parse()

	if *file == "" || *device == "" || *password == "" {
		log.Fatal("-file, -device and -password are required")
	}
	if *name == "" {
		*name = filepath.Base(*file)
	}

	token, err := authenticate(*server, *device, *password, *register)
	if err != nil {
		color.Red.Printf("Authentication failed: %v\n", err)
		os.Exit(1)
	}

	data, err := os.ReadFile(*file)
	if err != nil {
		log.Fatalf("Cannot read %s: %v", *file, err)
	}
	total := int64(len(data))

	ranges := splitRanges(total, *chunkSize)
	if *shuffle {
		rand.Shuffle(len(ranges), func(i, j int) {
			ranges[i], ranges[j] = ranges[j], ranges[i]
		})
	}

	for i, r := range ranges {
		if err := uploadChunk(*server, token, *name, total, r, data[r.Start:r.End+1]); err != nil {
			color.Red.Printf("Chunk [%d,%d] failed: %v\n", r.Start, r.End, err)
			os.Exit(1)
		}
		fmt.Printf("Sent chunk %d/%d [%d,%d]\n", i+1, len(ranges), r.Start, r.End)
	}
	color.Green.Printf("Upload of %s finished (%d bytes in %d chunks)\n", *name, total, len(ranges))

	if err := printFileTable(*server, token); err != nil {
		color.Yellow.Printf("Could not list files: %v\n", err)
	}
}

func splitRanges(total, size int64) []chunk.Range {
	var ranges []chunk.Range
	for start := int64(0); start < total; start += size {
		end := start + size - 1
		if end > total-1 {
			end = total - 1
		}
		ranges = append(ranges, chunk.Range{Start: start, End: end})
	}
	return ranges
}

func uploadChunk(server, token, name string, total int64, r chunk.Range, payload []byte) error {
	header := chunk.Encode(chunk.Header{Start: r.Start, End: r.End, Checksum: chunk.Sum(payload)})
	body := append(header, payload...)

	url := fmt.Sprintf("%s/files/upload?filename=%s&total_size=%d", server, neturl.QueryEscape(name), total)
	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Content-Type", "application/octet-stream")

		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		data, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		if resp.StatusCode == http.StatusOK {
			return nil
		}
		lastErr = fmt.Errorf("status %d: %s", resp.StatusCode, data)
	}
	return lastErr
}

func authenticate(server, device, password string, register bool) (string, error) {
	endpoint := "/token"
	if register {
		endpoint = "/register"
	}
	creds, _ := json.Marshal(map[string]string{"device_name": device, "password": password})
	resp, err := http.Post(server+endpoint, "application/json", bytes.NewReader(creds))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		data, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("status %d: %s", resp.StatusCode, data)
	}

	var body struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", err
	}
	return body.AccessToken, nil
}

func printFileTable(server, token string) error {
	req, err := http.NewRequest(http.MethodGet, server+"/files", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var body struct {
		Files []struct {
			Filename      string `json:"filename"`
			Status        string `json:"status"`
			BytesReceived int64  `json:"bytes_received"`
			TotalBytes    int64  `json:"total_bytes"`
		} `json:"files"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return err
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Filename", "Status", "Received", "Total"})
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetBorder(false)
	for _, f := range body.Files {
		table.Append([]string{
			f.Filename, f.Status,
			strconv.FormatInt(f.BytesReceived, 10),
			strconv.FormatInt(f.TotalBytes, 10),
		})
	}
	table.Render()
	return nil
}
