package model

import (
	"bufio"
	"io"
	"os"
	"path/filepath"

	"github.com/vmihailenco/msgpack/v5"

	scigoErrors "github.com/YuminosukeSato/farmincome/pkg/errors"
)

// SaveModel はモデルを msgpack 形式でファイルに保存する。
// 一時ファイルに書き込んでから rename するため、途中で失敗しても
// 既存のファイルが壊れることはない。
//
//	err := model.SaveModel(m, filepath.Join(dir, "fold_0.msgpack"))
func SaveModel(m interface{}, filename string) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(filename), ".tmp-"+filepath.Base(filename))
	if err != nil {
		return scigoErrors.NewArtifactError("model", filename, err)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	w := bufio.NewWriter(tmp)
	if err = SaveModelToWriter(m, w); err != nil {
		_ = tmp.Close()
		return scigoErrors.NewArtifactError("model", filename, err)
	}
	if err = w.Flush(); err != nil {
		_ = tmp.Close()
		return scigoErrors.NewArtifactError("model", filename, err)
	}
	if err = tmp.Close(); err != nil {
		return scigoErrors.NewArtifactError("model", filename, err)
	}
	if err = os.Rename(tmp.Name(), filename); err != nil {
		return scigoErrors.NewArtifactError("model", filename, err)
	}
	return nil
}

// LoadModel はファイルからモデルを読み込む。m はポインタであること。
func LoadModel(m interface{}, filename string) error {
	file, err := os.Open(filename)
	if err != nil {
		return scigoErrors.NewArtifactError("model", filename, err)
	}
	defer file.Close()

	if err := LoadModelFromReader(m, bufio.NewReader(file)); err != nil {
		return scigoErrors.NewArtifactError("model", filename, err)
	}
	return nil
}

// SaveModelToWriter はモデルを io.Writer に msgpack で書き出す
func SaveModelToWriter(m interface{}, w io.Writer) error {
	enc := msgpack.NewEncoder(w)
	if err := enc.Encode(m); err != nil {
		return scigoErrors.Wrap(err, "failed to encode model")
	}
	return nil
}

// LoadModelFromReader は io.Reader から msgpack のモデルを読み込む
func LoadModelFromReader(m interface{}, r io.Reader) error {
	dec := msgpack.NewDecoder(r)
	if err := dec.Decode(m); err != nil {
		return scigoErrors.Wrap(err, "failed to decode model")
	}
	return nil
}
