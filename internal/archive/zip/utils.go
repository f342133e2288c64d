package zip

import (
	"strings"
	"unicode/utf8"

	"github.com/saintfish/chardet"
	"github.com/yeka/zip"
	"github.com/zipfx/zipfx/internal/archive/tree"
	"github.com/zipfx/zipfx/internal/model"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/traditionalchinese"
)

const flagUTF8 = 0x800

type zipMeta struct {
	Comment   string
	Encrypted bool
	Count     int
}

func (m *zipMeta) GetComment() string {
	return m.Comment
}

func (m *zipMeta) IsEncrypted() bool {
	return m.Encrypted
}

func (m *zipMeta) GetEntryCount() int {
	return m.Count
}

func toFileInfo(file *zip.File) *model.FileInfo {
	name := tree.Clean(decodeName(file))
	return &model.FileInfo{
		Level:         tree.LevelOf(name),
		FileName:      name,
		CRC:           file.CRC32,
		PackedSize:    int64(file.CompressedSize64),
		RawSize:       int64(file.UncompressedSize64),
		LastWriteTime: model.TimePtr(file.ModTime()),
		Attributes:    file.ExternalAttrs,
		Comments:      file.Comment,
		IsFolder:      file.FileInfo().IsDir() || strings.HasSuffix(file.Name, "/"),
		IsEncrypted:   file.IsEncrypted(),
	}
}

// decodeName converts names written by tools that predate the utf-8 flag,
// typically GBK or Shift_JIS encoded archives made on Windows.
func decodeName(file *zip.File) string {
	if file.Flags&flagUTF8 != 0 || utf8.ValidString(file.Name) {
		return file.Name
	}
	enc := detectEncoding([]byte(file.Name))
	if enc == nil {
		return file.Name
	}
	decoded, err := enc.NewDecoder().String(file.Name)
	if err != nil {
		return file.Name
	}
	return decoded
}

func detectEncoding(raw []byte) encoding.Encoding {
	result, err := chardet.NewTextDetector().DetectBest(raw)
	if err != nil || result == nil {
		return simplifiedchinese.GB18030
	}
	switch strings.ToUpper(result.Charset) {
	case "GB-18030", "GB18030", "GBK", "GB2312":
		return simplifiedchinese.GB18030
	case "BIG5":
		return traditionalchinese.Big5
	case "SHIFT_JIS":
		return japanese.ShiftJIS
	case "EUC-JP":
		return japanese.EUCJP
	case "EUC-KR":
		return korean.EUCKR
	case "WINDOWS-1252":
		return charmap.Windows1252
	case "ISO-8859-1":
		return charmap.ISO8859_1
	}
	enc, err := ianaindex.IANA.Encoding(result.Charset)
	if err != nil || enc == nil {
		return simplifiedchinese.GB18030
	}
	return enc
}

func encryptionMethod(name string) (zip.EncryptionMethod, bool) {
	switch strings.ToLower(name) {
	case "zipcrypto", "standard":
		return zip.StandardEncryption, true
	case "aes128":
		return zip.AES128Encryption, true
	case "aes192":
		return zip.AES192Encryption, true
	case "aes256", "aes":
		return zip.AES256Encryption, true
	}
	return 0, false
}

func compressionMethod(info *model.ArchiveInfo) uint16 {
	if info.Level() == 0 || strings.EqualFold(info.GetString(model.PropCompressionMethod), "store") {
		return zip.Store
	}
	return zip.Deflate
}
