package model

import (
	"encoding/gob"
	"io"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
)

// SaveModel はモデルをgob形式でファイルに保存する。
// 一時ファイルに書き込んでからリネームするため、途中で失敗しても既存の成果物は壊れない。
//
// 使用例:
//
//	err := model.SaveModel(trained, "models/final_sales_model.gob")
func SaveModel(m interface{}, filename string) (err error) {
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "failed to create directory %s", dir)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(filename)+".*.tmp")
	if err != nil {
		return errors.Wrap(err, "failed to create file")
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	if err := SaveModelToWriter(m, tmp); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "failed to close file")
	}
	if err := os.Rename(tmp.Name(), filename); err != nil {
		return errors.Wrapf(err, "failed to move model into %s", filename)
	}
	return nil
}

// LoadModel はファイルからモデルを読み込む
//
// 使用例:
//
//	var trained pipeline.TrainedModel
//	err := model.LoadModel(&trained, "models/final_sales_model.gob")
func LoadModel(m interface{}, filename string) error {
	file, err := os.Open(filename)
	if err != nil {
		return errors.Wrap(err, "failed to open file")
	}
	defer file.Close()

	return LoadModelFromReader(m, file)
}

// SaveModelToWriter はモデルをio.Writerに保存する
func SaveModelToWriter(m interface{}, w io.Writer) error {
	if err := gob.NewEncoder(w).Encode(m); err != nil {
		return errors.Wrap(err, "failed to encode model")
	}
	return nil
}

// LoadModelFromReader はio.Readerからモデルを読み込む
func LoadModelFromReader(m interface{}, r io.Reader) error {
	if err := gob.NewDecoder(r).Decode(m); err != nil {
		return errors.Wrap(err, "failed to decode model")
	}
	return nil
}
