package leaderboard

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/verte-zerg/sprint/internal/model"
)

type codec interface {
	decode(data []byte) ([]model.ScoreRecord, error)
	encode(records []model.ScoreRecord) ([]byte, error)
}

func codecFor(path string) codec {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return jsonCodec{}
	}
	return tomlCodec{}
}

type tomlFile struct {
	Records []tomlRecord `toml:"record"`
}

// tomlRecord uses pointers so a missing key can be told apart from a zero.
type tomlRecord struct {
	Name  *string `toml:"name"`
	Score *int    `toml:"score"`
}

type tomlCodec struct{}

func (tomlCodec) decode(data []byte) ([]model.ScoreRecord, error) {
	var f tomlFile
	meta, err := toml.Decode(string(data), &f)
	if err != nil {
		return nil, err
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("unknown key %q", undecoded[0].String())
	}
	records := make([]model.ScoreRecord, 0, len(f.Records))
	for i, rec := range f.Records {
		if rec.Name == nil || rec.Score == nil {
			return nil, fmt.Errorf("record %d must have both name and score", i)
		}
		records = append(records, model.ScoreRecord{Name: *rec.Name, Score: *rec.Score})
	}
	return records, nil
}

func (tomlCodec) encode(records []model.ScoreRecord) ([]byte, error) {
	f := struct {
		Records []model.ScoreRecord `toml:"record"`
	}{Records: records}
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(f); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

type jsonRecord struct {
	Name  *string `json:"name"`
	Score *int    `json:"score"`
}

type jsonCodec struct{}

func (jsonCodec) decode(data []byte) ([]model.ScoreRecord, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	var raw []jsonRecord
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	var rest json.RawMessage
	if err := dec.Decode(&rest); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("trailing data after records")
	}
	records := make([]model.ScoreRecord, 0, len(raw))
	for i, rec := range raw {
		if rec.Name == nil || rec.Score == nil {
			return nil, fmt.Errorf("record %d must have both name and score", i)
		}
		records = append(records, model.ScoreRecord{Name: *rec.Name, Score: *rec.Score})
	}
	return records, nil
}

func (jsonCodec) encode(records []model.ScoreRecord) ([]byte, error) {
	if records == nil {
		records = []model.ScoreRecord{}
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}
