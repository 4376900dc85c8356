package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// DebugLogger provides unified debug message handling for console, files, and overlay
type DebugLogger struct {
	enabled        bool
	verbose        bool
	baseDir        string
	mu             sync.RWMutex
	orderFiles     map[string]*os.File // orderID -> file handle
	overlayHistory []DebugMessage      // For overlay terminal and console /status
	maxOverlayMsgs int
	writeQueue     chan DebugWriteTask
	stopWorker     chan bool
	workerStopped  sync.WaitGroup
}

type DebugMessage struct {
	Timestamp time.Time
	Component string
	Message   string
	OrderID   string
}

type DebugWriteTask struct {
	file    *os.File
	content string
}

// NewDebugLogger creates a unified debug logger. Per-order files are only
// written when enabled.
func NewDebugLogger(enabled, verbose bool, baseDir string) *DebugLogger {
	if enabled {
		if err := os.MkdirAll(baseDir, 0755); err != nil {
			fmt.Printf("[DEBUG_LOGGER] Failed to create debug directory: %v\n", err)
			enabled = false
		}
	}

	dl := &DebugLogger{
		enabled:        enabled,
		verbose:        verbose,
		baseDir:        baseDir,
		orderFiles:     make(map[string]*os.File),
		overlayHistory: make([]DebugMessage, 0),
		maxOverlayMsgs: 50, // Keep last 50 messages for overlay
		writeQueue:     make(chan DebugWriteTask, 100),
		stopWorker:     make(chan bool, 1),
	}

	if enabled {
		dl.workerStopped.Add(1)
		go dl.fileWriteWorker()
	}
	return dl
}

// debugMsg is the main unified debug function
func (dl *DebugLogger) debugMsg(component, message string, ids ...string) {
	timestamp := time.Now()
	fmt.Printf("[%s][%s] %s\n", timestamp.Format("15:04:05.000"), component, message)

	orderID := ""
	if len(ids) > 0 && ids[0] != "" {
		orderID = ids[0]
	}

	dl.mu.Lock()
	defer dl.mu.Unlock()

	dl.overlayHistory = append(dl.overlayHistory, DebugMessage{
		Timestamp: timestamp,
		Component: component,
		Message:   message,
		OrderID:   orderID,
	})
	if len(dl.overlayHistory) > dl.maxOverlayMsgs {
		dl.overlayHistory = dl.overlayHistory[1:]
	}

	if !dl.enabled || orderID == "" {
		return
	}
	file := dl.getOrCreateOrderFile(orderID)
	if file == nil {
		return
	}
	content := fmt.Sprintf("[%s][%s] %s\n", timestamp.Format("15:04:05.000"), component, message)
	select {
	case dl.writeQueue <- DebugWriteTask{file: file, content: content}:
	default:
		// Queue full, drop message to prevent blocking
	}
}

// debugMsgVerbose only outputs when -debug-verbose is set
func (dl *DebugLogger) debugMsgVerbose(component, message string, ids ...string) {
	if !dl.verbose {
		return
	}
	dl.debugMsg(component, message, ids...)
}

// getOrCreateOrderFile must be called with dl.mu held
func (dl *DebugLogger) getOrCreateOrderFile(orderID string) *os.File {
	if file, exists := dl.orderFiles[orderID]; exists {
		return file
	}

	path := filepath.Join(dl.baseDir, filepath.Base(orderID)+".txt")
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		fmt.Printf("[DEBUG_LOGGER] Failed to open order debug file %s: %v\n", path, err)
		return nil
	}

	if info, err := file.Stat(); err == nil && info.Size() == 0 {
		header := fmt.Sprintf("\n=== ORDER DEBUG LOG: %s ===\n", orderID)
		header += fmt.Sprintf("Started: %s\n", time.Now().Format("2006-01-02 15:04:05"))
		header += "========================================\n\n"
		file.WriteString(header)
	}

	dl.orderFiles[orderID] = file
	fmt.Printf("[DEBUG_LOGGER] Created order file: %s\n", path)
	return file
}

// fileWriteWorker handles async file writing
func (dl *DebugLogger) fileWriteWorker() {
	defer dl.workerStopped.Done()

	for {
		select {
		case task := <-dl.writeQueue:
			task.file.WriteString(task.content)
		case <-dl.stopWorker:
			for len(dl.writeQueue) > 0 {
				task := <-dl.writeQueue
				task.file.WriteString(task.content)
			}
			return
		}
	}
}

// History returns recent messages as "[COMPONENT] message" lines
func (dl *DebugLogger) History() []string {
	dl.mu.RLock()
	defer dl.mu.RUnlock()

	lines := make([]string, len(dl.overlayHistory))
	for i, msg := range dl.overlayHistory {
		lines[i] = fmt.Sprintf("[%s] %s", msg.Component, msg.Message)
	}
	return lines
}

// Close drains pending writes and closes order files
func (dl *DebugLogger) Close() {
	if !dl.enabled {
		return
	}

	dl.stopWorker <- true
	dl.workerStopped.Wait()

	dl.mu.Lock()
	for orderID, file := range dl.orderFiles {
		file.Sync()
		file.Close()
		fmt.Printf("[DEBUG_LOGGER] Closed order file for %s\n", orderID)
	}
	dl.mu.Unlock()
}
