package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/thereceipt/receipt-raster/pkg/receiptformat"
)

const (
	defaultServerURL = "http://localhost:12212"
)

var client = &http.Client{Timeout: 2 * time.Minute}

func main() {
	var serverURL string
	flag.StringVar(&serverURL, "server", defaultServerURL, "Server URL")
	flag.StringVar(&serverURL, "s", defaultServerURL, "Server URL (short)")
	flag.Usage = printUsage
	flag.Parse()

	if flag.NArg() == 0 {
		printUsage()
		os.Exit(1)
	}

	args := flag.Args()
	serverURL = strings.TrimSuffix(serverURL, "/")

	var result *CommandResult
	switch args[0] {
	case "print":
		result = printReceipt(serverURL, args[1:])
	case "preview":
		result = previewReceipt(serverURL, args[1:])
	default:
		result = executeCommand(serverURL, strings.Join(quoteArgs(args), " "))
	}

	if result.Success {
		printSuccess(result)
		os.Exit(0)
	}
	printError(result)
	os.Exit(1)
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `%s

Usage:
  receipt-cli [flags] <command>

Flags:
  -s, -server <url>    Server URL (default: %s)

Commands:
  print <receipt.json|sample> [endpoint] [--mode=raster|bands|text] [--async]
    Send a local receipt file to the server and print it

  preview <receipt.json|sample> <output.png> [--paper=58mm|80mm|112mm]
    Render a local receipt on the server and save the PNG here

  jobs [clear]
    List print jobs, or remove finished ones

  job <id>
    Get status of a specific job

  ports
    List serial ports and USB devices on the server host

  probe [endpoint] [from] [to]
    Print a sample line under each code page in the range

  help
    Show the server's command help

Examples:
  receipt-cli print ./receipt.json
  receipt-cli print sample tcp://192.168.1.50:9100 --mode=bands
  receipt-cli preview ./receipt.json receipt.png --paper=58mm
  receipt-cli -s http://pos-server:12212 jobs

`, TitleStyle.Render("Receipt Raster CLI"), defaultServerURL)
}

// CommandResult mirrors the server's command result
type CommandResult struct {
	Success bool                   `json:"success"`
	Message string                 `json:"message,omitempty"`
	Data    map[string]interface{} `json:"data,omitempty"`
	Error   string                 `json:"error,omitempty"`
}

func failed(format string, args ...any) *CommandResult {
	return &CommandResult{Success: false, Error: fmt.Sprintf(format, args...)}
}

// quoteArgs re-quotes arguments containing spaces for the command parser
func quoteArgs(args []string) []string {
	quoted := make([]string, len(args))
	for i, arg := range args {
		if strings.ContainsAny(arg, " \t") {
			arg = `"` + arg + `"`
		}
		quoted[i] = arg
	}
	return quoted
}

func splitFlags(args []string) ([]string, map[string]string) {
	var positional []string
	flags := make(map[string]string)
	for _, arg := range args {
		if !strings.HasPrefix(arg, "--") {
			positional = append(positional, arg)
			continue
		}
		name, value, _ := strings.Cut(strings.TrimPrefix(arg, "--"), "=")
		flags[name] = value
	}
	return positional, flags
}

func loadReceipt(source string) (*receiptformat.Request, error) {
	if source == "sample" {
		return receiptformat.Sample(), nil
	}
	return receiptformat.ParseFile(source)
}

func printReceipt(serverURL string, args []string) *CommandResult {
	positional, flags := splitFlags(args)
	if len(positional) < 1 {
		return failed("usage: print <receipt.json|sample> [endpoint] [--mode=raster|bands|text] [--async]")
	}

	receipt, err := loadReceipt(positional[0])
	if err != nil {
		return failed("%v", err)
	}

	body := map[string]any{"receipt": receipt}
	if len(positional) > 1 {
		body["endpoint"] = positional[1]
	}
	if mode := flags["mode"]; mode != "" {
		body["mode"] = mode
	}
	if _, ok := flags["async"]; ok {
		body["async"] = true
	}

	resp, data, err := postJSON(serverURL+"/print", body)
	if err != nil {
		return failed("%v", err)
	}

	var reply struct {
		Success bool   `json:"success"`
		JobID   string `json:"job_id"`
		Status  string `json:"status"`
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(data, &reply); err != nil {
		return failed("failed to parse response (HTTP %d): %v", resp.StatusCode, err)
	}
	if !reply.Success {
		return failed("%s", reply.Error)
	}

	message := reply.Message
	if message == "" {
		message = fmt.Sprintf("Queued job %s", reply.JobID)
	}
	return &CommandResult{
		Success: true,
		Message: message,
		Data:    map[string]interface{}{"job_id": reply.JobID},
	}
}

func previewReceipt(serverURL string, args []string) *CommandResult {
	positional, flags := splitFlags(args)
	if len(positional) < 2 {
		return failed("usage: preview <receipt.json|sample> <output.png> [--paper=58mm|80mm|112mm]")
	}

	receipt, err := loadReceipt(positional[0])
	if err != nil {
		return failed("%v", err)
	}

	body := map[string]any{"receipt": receipt}
	if paper, ok := flags["paper"]; ok {
		width, err := receiptformat.PaperWidthToPixels(paper)
		if err != nil {
			return failed("%v", err)
		}
		body["layout"] = map[string]int{"paper_width": width}
	}

	resp, data, err := postJSON(serverURL+"/preview", body)
	if err != nil {
		return failed("%v", err)
	}
	if resp.StatusCode != http.StatusOK {
		var reply struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(data, &reply) == nil && reply.Error != "" {
			return failed("%s", reply.Error)
		}
		return failed("preview failed: HTTP %d", resp.StatusCode)
	}

	if err := os.WriteFile(positional[1], data, 0644); err != nil {
		return failed("failed to write preview: %v", err)
	}

	return &CommandResult{
		Success: true,
		Message: fmt.Sprintf("Saved preview to %s", positional[1]),
		Data: map[string]interface{}{
			"total":          resp.Header.Get("X-Receipt-Total"),
			"truncated":      resp.Header.Get("X-Receipt-Truncated"),
			"missing_glyphs": resp.Header.Get("X-Receipt-Missing-Glyphs"),
		},
	}
}

func postJSON(url string, body any) (*http.Response, []byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	resp, err := client.Post(url, "application/json", bytes.NewReader(payload))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to server: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read response: %w", err)
	}
	return resp, data, nil
}

func executeCommand(serverURL, command string) *CommandResult {
	_, data, err := postJSON(serverURL+"/command", map[string]string{"command": command})
	if err != nil {
		return failed("%v", err)
	}

	var result CommandResult
	if err := json.Unmarshal(data, &result); err != nil {
		return failed("failed to parse response: %v", err)
	}
	return &result
}

func printSuccess(result *CommandResult) {
	if result.Message != "" {
		fmt.Println(SuccessStyle.Render("✓ ") + result.Message)
	}
	if result.Data == nil {
		return
	}

	if jobs, ok := result.Data["jobs"].([]interface{}); ok {
		printJobs(jobs)
	}
	if job, ok := result.Data["job"].(map[string]interface{}); ok {
		printJob(job)
	}
	if serial, ok := result.Data["serial"].([]interface{}); ok {
		printPorts(serial, result.Data["usb"], result.Data["usb_error"])
	}

	var rows []string
	keys := make([]string, 0, len(result.Data))
	for k := range result.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		switch v := result.Data[k].(type) {
		case string:
			if v != "" && k != "usb_error" {
				rows = append(rows, LabelStyle.Render(k)+v)
			}
		case float64:
			rows = append(rows, LabelStyle.Render(k)+fmt.Sprint(v))
		}
	}
	if len(rows) > 0 {
		fmt.Println(lipgloss.JoinVertical(lipgloss.Left, rows...))
	}
}

func printJobs(jobs []interface{}) {
	if len(jobs) == 0 {
		return
	}
	var lines []string
	for _, j := range jobs {
		job, ok := j.(map[string]interface{})
		if !ok {
			continue
		}
		status := fmt.Sprint(job["status"])
		line := fmt.Sprintf("%s  %s  %s",
			job["id"],
			StatusStyle(status).Width(10).Render(status),
			MutedStyle.Render(fmt.Sprint(job["printer"])),
		)
		if msg, ok := job["error"].(string); ok && msg != "" {
			line += "\n    " + ErrorStyle.Render(msg)
		}
		lines = append(lines, line)
	}
	fmt.Println(CardStyle.Render(lipgloss.JoinVertical(lipgloss.Left, lines...)))
}

func printJob(job map[string]interface{}) {
	status := fmt.Sprint(job["status"])
	rows := []string{
		LabelStyle.Render("id") + fmt.Sprint(job["id"]),
		LabelStyle.Render("printer") + fmt.Sprint(job["printer"]),
		LabelStyle.Render("status") + StatusStyle(status).Render(status),
		LabelStyle.Render("retries") + fmt.Sprint(job["retries"]),
		LabelStyle.Render("created") + fmt.Sprint(job["created_at"]),
	}
	if msg, ok := job["error"].(string); ok && msg != "" {
		rows = append(rows, LabelStyle.Render("error")+ErrorStyle.Render(msg))
	}
	fmt.Println(CardStyle.Render(lipgloss.JoinVertical(lipgloss.Left, rows...)))
}

func printPorts(serial []interface{}, usb interface{}, usbErr interface{}) {
	fmt.Println(TitleStyle.Render("Serial ports"))
	for _, p := range serial {
		fmt.Printf("  serial://%s\n", p)
	}

	fmt.Println(TitleStyle.Render("USB devices"))
	if msg, ok := usbErr.(string); ok && msg != "" {
		fmt.Println("  " + WarningStyle.Render(msg))
	}
	devices, _ := usb.([]interface{})
	for _, d := range devices {
		dev, ok := d.(map[string]interface{})
		if !ok {
			continue
		}
		vid, _ := dev["vid"].(float64)
		pid, _ := dev["pid"].(float64)
		line := fmt.Sprintf("  usb://%04x:%04x  %v %v", int(vid), int(pid), dev["manufacturer"], dev["product"])
		if printer, _ := dev["printer"].(bool); printer {
			line += SuccessStyle.Render("  printer")
		}
		fmt.Println(line)
	}
}

func printError(result *CommandResult) {
	if result.Error != "" {
		fmt.Fprintln(os.Stderr, ErrorStyle.Render("Error: ")+result.Error)
	} else if result.Message != "" {
		fmt.Fprintln(os.Stderr, result.Message)
	}
}
