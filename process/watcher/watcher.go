// Package watcher watches a directory for newly uploaded document images and
// runs each one through the intelligence pipeline in-process, persisting the
// result the same way the HTTP upload handler does. It replaces the original
// design of spawning a separate `go run` subprocess per server start: the
// watcher now runs as a goroutine inside the same binary and shares the
// server's database handle and intelligence engine.
package watcher

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"gorm.io/gorm"

	"docintel/models"
	"docintel/pkg/intelligence"
)

// Watcher watches a directory for new document images, runs them through an
// intelligence.Engine, and records the outcome as an Upload+Document pair
// owned by the given profile.
type Watcher struct {
	DB      *gorm.DB
	Engine  *intelligence.Engine
	Dir     string
	Profile models.Profile
	Workers int
}

// New constructs a Watcher. Workers defaults to 4 when workers <= 0.
func New(db *gorm.DB, engine *intelligence.Engine, dir string, profile models.Profile, workers int) *Watcher {
	if workers <= 0 {
		workers = 4
	}
	return &Watcher{DB: db, Engine: engine, Dir: dir, Profile: profile, Workers: workers}
}

// Run scans dir once for any files already present, then blocks watching for
// new ones until the process exits. Intended to be started with `go`.
func (w *Watcher) Run() {
	if err := os.MkdirAll(w.Dir, 0755); err != nil {
		log.Printf("watcher: cannot create %s: %v", w.Dir, err)
		return
	}

	fileCh := make(chan string, 256)
	var wg sync.WaitGroup
	for i := 0; i < w.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for name := range fileCh {
				w.processFile(name)
			}
		}()
	}

	for _, name := range listImageFiles(w.Dir) {
		fileCh <- name
	}

	if err := w.watch(fileCh); err != nil {
		log.Printf("watcher: fsnotify setup failed, falling back to no live updates: %v", err)
	}
	close(fileCh)
	wg.Wait()
}

func listImageFiles(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext == ".jpg" || ext == ".jpeg" || ext == ".png" {
			out = append(out, e.Name())
		}
	}
	sort.Strings(out)
	return out
}

// watch blocks, debouncing fsnotify create events by 300ms before handing
// the stable file name to fileCh, per the original poll loop's debounce
// window.
func (w *Watcher) watch(fileCh chan<- string) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()
	if err := fw.Add(w.Dir); err != nil {
		return err
	}
	log.Printf("watcher: watching %s", w.Dir)

	pending := map[string]time.Time{}
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if ev.Op&fsnotify.Create == fsnotify.Create {
				name := filepath.Base(ev.Name)
				ext := strings.ToLower(filepath.Ext(name))
				if ext == ".jpg" || ext == ".jpeg" || ext == ".png" {
					pending[name] = time.Now()
				}
			}
		case <-ticker.C:
			now := time.Now()
			for name, t := range pending {
				if now.Sub(t) > 300*time.Millisecond {
					fileCh <- name
					delete(pending, name)
				}
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			log.Printf("watcher: fsnotify error: %v", err)
		}
	}
}

// processFile runs one file through the engine and upserts its Upload and
// Document rows, mirroring the HTTP upload handler's persistence shape.
func (w *Watcher) processFile(name string) {
	fullPath := filepath.Join(w.Dir, name)

	var up models.Upload
	isNew := false
	if err := w.DB.Where("profile_id = ? AND file_name = ?", w.Profile.ID, name).First(&up).Error; err != nil {
		isNew = true
		up = models.Upload{ProfileID: w.Profile.ID, FileName: name, StorePath: filepath.ToSlash(fullPath)}
		if err := w.DB.Create(&up).Error; err != nil {
			log.Printf("watcher: failed to record upload for %s: %v", name, err)
			return
		}
	}

	result := w.Engine.Process(fmt.Sprintf("%d:%s", w.Profile.ID, name), fullPath, "", "")
	if !result.Success {
		up.Failed = true
		up.FailedReason = result.Error
		w.DB.Save(&up)
		log.Printf("watcher: extraction failed for %s: %s", name, result.Error)
		return
	}

	var doc models.Document
	if err := w.DB.Where("profile_id = ? AND file_name = ?", w.Profile.ID, name).First(&doc).Error; err == nil {
		doc = w.documentFromResult(name, result, doc.ID)
		w.DB.Save(&doc)
	} else {
		doc = w.documentFromResult(name, result, 0)
		w.DB.Create(&doc)
	}
	up.DocumentID = &doc.ID
	w.DB.Save(&up)

	if isNew {
		log.Printf("watcher: processed new file %s -> document_id=%d confidence=%.2f", name, doc.ID, result.Confidence)
	} else {
		log.Printf("watcher: reprocessed %s -> document_id=%d confidence=%.2f", name, doc.ID, result.Confidence)
	}
}

func (w *Watcher) documentFromResult(fileName string, result intelligence.Result, id uint) models.Document {
	fieldsJSON, _ := json.Marshal(result.ExtractedFields)
	consensusJSON, _ := json.Marshal(result.ConsensusDetails)
	var confirmationJSON []byte
	if result.Confirmation != nil {
		confirmationJSON, _ = json.Marshal(result.Confirmation)
	}
	doc := models.Document{
		ProfileID:         w.Profile.ID,
		FileName:          fileName,
		DocumentType:      string(result.DocumentType),
		Vendor:            result.ExtractedFields.Vendor,
		HasTotal:          result.ExtractedFields.HasTotal,
		TotalAmount:       result.ExtractedFields.TotalAmount,
		Currency:          result.ExtractedFields.Currency,
		DocumentDate:      result.ExtractedFields.Date,
		Confidence:        result.Confidence,
		ConfidenceLevel:   string(result.ConfidenceLevel),
		NeedsConfirmation: result.NeedsConfirmation,
		RawText:           result.RawText,
		CleanedText:       result.CleanedText,
		ExtractedFields:   string(fieldsJSON),
		ConsensusDetails:  string(consensusJSON),
		Confirmation:      string(confirmationJSON),
		Warnings:          strings.Join(result.Warnings, "\n"),
		Failed:            !result.Success,
		FailedReason:      result.Error,
	}
	doc.ID = id
	return doc
}
