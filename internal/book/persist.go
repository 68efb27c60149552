package book

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// WriteDeck writes one JSON record per card, in deck order.
func WriteDeck(w io.Writer, cards CardSet) error {
	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)
	enc.SetEscapeHTML(false)
	for i, c := range cards {
		if err := enc.Encode(c); err != nil {
			return fmt.Errorf("failed to encode card %d: %w", i, err)
		}
	}
	return bw.Flush()
}

// ReadDeck parses newline-delimited card records.
func ReadDeck(r io.Reader) (CardSet, error) {
	dec := json.NewDecoder(bufio.NewReader(r))
	var cards CardSet
	for {
		var c Card
		err := dec.Decode(&c)
		if errors.Is(err, io.EOF) {
			return cards, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to decode card %d: %w", len(cards), err)
		}
		cards = append(cards, c)
	}
}

// SaveDeck writes the deck to path as JSONL.
func SaveDeck(path string, cards CardSet) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create deck file: %w", err)
	}
	if err := WriteDeck(f, cards); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// LoadDeck reads a JSONL deck from path.
func LoadDeck(path string) (CardSet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open deck file: %w", err)
	}
	defer f.Close()
	return ReadDeck(f)
}

// SaveStructure writes the structure as indented JSON.
func SaveStructure(path string, s Structure) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal structure: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// LoadStructure reads a structure JSON document.
func LoadStructure(path string) (Structure, error) {
	var s Structure
	data, err := os.ReadFile(path)
	if err != nil {
		return s, fmt.Errorf("failed to read structure file: %w", err)
	}
	if err := json.Unmarshal(data, &s); err != nil {
		return s, fmt.Errorf("failed to parse structure file: %w", err)
	}
	return s, nil
}

// DeckPath returns "<dir>/<name>.jsonl".
func DeckPath(dir, name string) string {
	return filepath.Join(dir, name+".jsonl")
}

// StructurePath returns "<dir>/book_structure_<name>.json".
func StructurePath(dir, name string) string {
	return filepath.Join(dir, "book_structure_"+name+".json")
}

// SaveGame persists both the deck and the structure under dir and returns
// the two paths written.
func SaveGame(dir, name string, cards CardSet, s Structure) (deckPath, structurePath string, err error) {
	deckPath = DeckPath(dir, name)
	structurePath = StructurePath(dir, name)
	if err := SaveDeck(deckPath, cards); err != nil {
		return "", "", err
	}
	if err := SaveStructure(structurePath, s); err != nil {
		return "", "", err
	}
	return deckPath, structurePath, nil
}
