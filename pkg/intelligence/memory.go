package intelligence

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// MaxMemoryEntries is the default cap on Learning Memory entries (spec §3,
// §6 "max_memory_entries default 1000").
const MaxMemoryEntries = 1000

const matchThreshold = 0.6

// BuildFingerprint derives a DocumentFingerprint from a document's cleaned
// text and accepted fields, per spec §3/§4.5: header/footer keyword lists
// from the top 15%/bottom 20% of lines, alphabetic tokens of length>3,
// ranked by frequency, top 10 each.
func BuildFingerprint(text string, docType DocumentType, vendor, currency string) DocumentFingerprint {
	lines := strings.Split(text, "\n")
	hasTable := false // table detection is a LayoutAnalysis concern; callers that ran AnalyzeLayout set the HasTable field themselves.
	return DocumentFingerprint{
		LineCountBucket: bucketLineCount(len(lines)),
		HeaderKeywords:  topKeywords(headerLines(lines)),
		FooterKeywords:  topKeywords(footerLines(lines)),
		HasTable:        hasTable,
		ApproxWordCount: len(strings.Fields(text)),
		DocumentType:    docType,
		VendorName:      vendor,
		Currency:        currency,
	}
}

func topKeywords(lines []string) []string {
	counts := map[string]int{}
	var order []string
	for _, line := range lines {
		for _, tok := range strings.Fields(strings.ToLower(line)) {
			tok = trimNonAlpha(tok)
			if len(tok) <= 3 || !isAlpha(tok) {
				continue
			}
			if _, seen := counts[tok]; !seen {
				order = append(order, tok)
			}
			counts[tok]++
		}
	}
	sort.SliceStable(order, func(i, j int) bool { return counts[order[i]] > counts[order[j]] })
	if len(order) > 10 {
		order = order[:10]
	}
	return order
}

func isAlpha(s string) bool {
	for _, r := range s {
		if !((r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')) {
			return false
		}
	}
	return len(s) > 0
}

func trimNonAlpha(s string) string {
	return strings.TrimFunc(s, func(r rune) bool {
		return !((r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z'))
	})
}

// Hash computes the stable fingerprint hash described in spec §3: an MD5
// digest (first 16 hex chars) over a canonical pipe-joined string of
// (line_count bucket, first 5 header keywords sorted, document_type,
// vendor_name).
func (f DocumentFingerprint) Hash() string {
	keywords := append([]string(nil), f.HeaderKeywords...)
	if len(keywords) > 5 {
		keywords = keywords[:5]
	}
	sort.Strings(keywords)
	canonical := fmt.Sprintf("%d|%s|%s|%s", f.LineCountBucket, strings.Join(keywords, ","), f.DocumentType, strings.ToLower(f.VendorName))
	sum := md5.Sum([]byte(canonical))
	return hex.EncodeToString(sum[:])[:16]
}

// Similarity scores how alike two fingerprints are, per spec §4.5: exact
// hash match returns 1.0 immediately; otherwise weighted partial credit.
func (f DocumentFingerprint) Similarity(other DocumentFingerprint) float64 {
	if f.Hash() == other.Hash() {
		return 1.0
	}
	score := 0.0
	if f.DocumentType == other.DocumentType {
		score += 0.3
	}
	if f.VendorName != "" && strings.EqualFold(f.VendorName, other.VendorName) {
		score += 0.4
	}
	if other.LineCountBucket > 0 {
		ratio := float64(f.LineCountBucket) / float64(other.LineCountBucket)
		if ratio > 1 {
			ratio = 1 / ratio
		}
		if ratio > 0.8 {
			score += 0.1
		}
	}
	score += 0.05 * float64(sharedCount(f.HeaderKeywords, other.HeaderKeywords))
	if f.Currency != "" && f.Currency == other.Currency {
		score += 0.05
	}
	if score > 1.0 {
		score = 1.0
	}
	return score
}

func sharedCount(a, b []string) int {
	set := map[string]bool{}
	for _, x := range a {
		set[x] = true
	}
	n := 0
	for _, y := range b {
		if set[y] {
			n++
		}
	}
	return n
}

// Memory is the persistent, concurrency-safe Learning Memory described in
// spec §4.5/§5. Construct with NewMemory and a file path; the zero value is
// not usable. Grounded on original_source/learning_memory.py's LearningMemory
// class, with atomic persistence added per spec §5 (the original's _save is
// a bare json.dump).
type Memory struct {
	mu      sync.RWMutex
	saveMu  sync.Mutex // serializes Save so a newer snapshot is never overwritten by an older one
	path    string
	entries map[string]*LearningMemoryEntry
	maxSize int
}

// NewMemory constructs a Memory backed by path, loading any existing state.
// A read failure starts empty and logs, per spec §7 MemoryIOFailure.
func NewMemory(path string, maxSize int) *Memory {
	if maxSize <= 0 {
		maxSize = MaxMemoryEntries
	}
	m := &Memory{path: path, entries: map[string]*LearningMemoryEntry{}, maxSize: maxSize}
	m.load()
	return m
}

type persistedEntry struct {
	Fingerprint     DocumentFingerprint
	FingerprintHash string
	FieldPositions  []FieldPosition
	Corrections     []UserCorrection
	VendorRules     []VendorRule
	TimesSeen       int
	TimesConfirmed  int
	FirstSeen       time.Time
	LastSeen        time.Time
}

type persistedMemory struct {
	Version int
	Entries []persistedEntry
}

func (m *Memory) load() {
	data, err := os.ReadFile(m.path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("learning memory: cannot read %s, starting empty: %v", m.path, err)
		}
		return // InputMissing/MemoryIOFailure: start empty, per spec §7.
	}
	var pm persistedMemory
	if err := json.Unmarshal(data, &pm); err != nil {
		log.Printf("learning memory: cannot parse %s, starting empty: %v", m.path, err)
		return
	}
	for _, pe := range pm.Entries {
		entry := LearningMemoryEntry(pe)
		m.entries[entry.FingerprintHash] = &entry
	}
}

// Save persists the current state atomically (write-temp-then-rename) per
// spec §4.5/§5. A write failure logs and leaves in-memory state
// authoritative, matching spec §7 MemoryIOFailure. Saves run one at a time,
// each writing the state current when it starts.
func (m *Memory) Save() (err error) {
	m.saveMu.Lock()
	defer m.saveMu.Unlock()
	defer func() {
		if err != nil {
			log.Printf("learning memory: save to %s failed: %v", m.path, err)
		}
	}()

	m.mu.RLock()
	pm := persistedMemory{Version: 1}
	for _, e := range m.entries {
		pm.Entries = append(pm.Entries, persistedEntry(*e))
	}
	m.mu.RUnlock()

	data, err := json.MarshalIndent(pm, "", "  ")
	if err != nil {
		return err
	}
	dir := filepath.Dir(m.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".learning-memory-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, m.path)
}

// FindMatch looks up the best matching entry for fp, per spec §4.5: vendor
// name is an index consulted first, falling back to a full scan; a match
// requires similarity ≥ matchThreshold. The read observes a consistent
// snapshot under the memory's lock, per spec §5's concurrency contract.
func (m *Memory) FindMatch(fp DocumentFingerprint) MemoryMatch {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if e, ok := m.entries[fp.Hash()]; ok {
		return MemoryMatch{Found: true, Score: 1.0, Explanation: "exact fingerprint match", Entry: cloneEntry(e)}
	}

	var best *LearningMemoryEntry
	bestScore := 0.0

	if fp.VendorName != "" {
		for _, e := range m.entries {
			if strings.EqualFold(e.Fingerprint.VendorName, fp.VendorName) {
				if s := fp.Similarity(e.Fingerprint); s > bestScore {
					bestScore, best = s, e
				}
			}
		}
	}
	if best == nil {
		for _, e := range m.entries {
			if s := fp.Similarity(e.Fingerprint); s > bestScore {
				bestScore, best = s, e
			}
		}
	}

	if best == nil || bestScore < matchThreshold {
		return MemoryMatch{Found: false}
	}
	return MemoryMatch{Found: true, Score: bestScore, Explanation: fmt.Sprintf("similarity %.2f to a previously seen document", bestScore), Entry: cloneEntry(best)}
}

func cloneEntry(e *LearningMemoryEntry) *LearningMemoryEntry {
	cp := *e
	return &cp
}

// ConfidenceBoost returns the confidence boost a memory match contributes,
// per spec §4.5.
func (mm MemoryMatch) ConfidenceBoost() float64 {
	if !mm.Found {
		return 0
	}
	if mm.Entry != nil && mm.Entry.TimesConfirmed > 0 && mm.Score >= 0.95 {
		return 0.25
	}
	if mm.Score >= 0.95 {
		return 0.15
	}
	return 0.15 * mm.Score
}

// LearnFromDocument records a new sighting of fp, creating an entry on
// first sight or incrementing times_seen on subsequent sightings, then
// prunes and saves. Serializes with FindMatch/RecordCorrection per spec §5.
func (m *Memory) LearnFromDocument(fp DocumentFingerprint, positions []FieldPosition, userConfirmed bool) {
	m.mu.Lock()
	now := time.Now()
	hash := fp.Hash()
	entry, ok := m.entries[hash]
	if !ok {
		entry = &LearningMemoryEntry{Fingerprint: fp, FingerprintHash: hash, FirstSeen: now}
		m.entries[hash] = entry
	}
	entry.FieldPositions = positions
	entry.TimesSeen++
	entry.LastSeen = now
	if userConfirmed {
		entry.TimesConfirmed++
	}
	m.prune()
	m.mu.Unlock()
	_ = m.Save()
}

// RecordCorrection upserts a UserCorrection, collapsing repeats of the same
// (field_name, original_value) pair into an incremented count, per spec §3.
func (m *Memory) RecordCorrection(fp DocumentFingerprint, fieldName, original, corrected string) {
	m.mu.Lock()
	hash := fp.Hash()
	entry, ok := m.entries[hash]
	if !ok {
		entry = &LearningMemoryEntry{Fingerprint: fp, FingerprintHash: hash, FirstSeen: time.Now()}
		m.entries[hash] = entry
	}
	found := false
	for i := range entry.Corrections {
		c := &entry.Corrections[i]
		if c.FieldName == fieldName && c.OriginalValue == original {
			c.CorrectedValue = corrected
			c.CorrectionCount++
			c.Timestamp = time.Now()
			found = true
			break
		}
	}
	if !found {
		entry.Corrections = append(entry.Corrections, UserCorrection{
			FieldName: fieldName, OriginalValue: original, CorrectedValue: corrected,
			DocumentType: fp.DocumentType, VendorName: fp.VendorName,
			Timestamp: time.Now(), CorrectionCount: 1,
		})
	}
	m.upsertVendorRule(entry, fp.VendorName, fieldName)
	entry.LastSeen = time.Now()
	m.mu.Unlock()
	_ = m.Save()
}

func (m *Memory) upsertVendorRule(entry *LearningMemoryEntry, vendor, fieldName string) {
	if vendor == "" {
		return
	}
	for i := range entry.VendorRules {
		if entry.VendorRules[i].VendorName == vendor && entry.VendorRules[i].FieldName == fieldName {
			return
		}
	}
	entry.VendorRules = append(entry.VendorRules, VendorRule{VendorName: vendor, FieldName: fieldName, ExtractionHint: "user_corrected"})
}

// prune enforces the MAX_ENTRIES cap, keeping entries with the highest
// UtilityScore, per spec §3. Caller must hold m.mu.
func (m *Memory) prune() {
	if len(m.entries) <= m.maxSize {
		return
	}
	all := make([]*LearningMemoryEntry, 0, len(m.entries))
	for _, e := range m.entries {
		all = append(all, e)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].UtilityScore() > all[j].UtilityScore() })
	keep := all[:m.maxSize]
	m.entries = make(map[string]*LearningMemoryEntry, len(keep))
	for _, e := range keep {
		m.entries[e.FingerprintHash] = e
	}
}

// Len returns the number of entries currently held.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
