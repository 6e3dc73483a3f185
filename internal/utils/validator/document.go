// internal/utils/validator/document.go
package validator

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/feichai0017/document-summarizer/internal/agent/extractor"
	apperrors "github.com/feichai0017/document-summarizer/pkg/errors"
	"github.com/feichai0017/document-summarizer/pkg/logger"
)

const pdfMagic = "%PDF-"

// DocumentValidator 上传验证器
type DocumentValidator struct {
	logger logger.Logger
	config *ValidatorConfig
}

// ValidatorConfig 验证器配置
type ValidatorConfig struct {
	MaxFileSize  int64               // 最大文件大小（字节）
	AllowedTypes map[string][]string // 允许的文件类型 {扩展名: []MIME类型}
	VideoHosts   []string
}

// ValidationResult 验证结果
type ValidationResult struct {
	IsValid  bool              `json:"isValid"`
	Errors   []ValidationError `json:"errors,omitempty"`
	FileInfo FileInfo          `json:"fileInfo"`
}

// ValidationError 验证错误
type ValidationError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

// FileInfo 文件信息
type FileInfo struct {
	Filename  string `json:"filename"`
	Size      int64  `json:"size"`
	MimeType  string `json:"mimeType"`
	Extension string `json:"extension"`
	Hash      string `json:"hash"`
}

// Err folds the failures into one apperrors validation error.
func (r *ValidationResult) Err() error {
	if r.IsValid {
		return nil
	}
	msgs := make([]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		msgs = append(msgs, e.Message)
	}
	return apperrors.NewValidationError(r.Errors[0].Field, strings.Join(msgs, "; "))
}

func (r *ValidationResult) add(code, field, message string) {
	r.IsValid = false
	r.Errors = append(r.Errors, ValidationError{Code: code, Message: message, Field: field})
}

func DefaultConfig() *ValidatorConfig {
	return &ValidatorConfig{
		MaxFileSize: 10 * 1024 * 1024, // 10MB
		AllowedTypes: map[string][]string{
			".pdf": {"application/pdf"},
		},
		VideoHosts: []string{"youtube.com", "youtu.be"},
	}
}

// NewDocumentValidator 创建新的文档验证器
func NewDocumentValidator(log logger.Logger, config *ValidatorConfig) *DocumentValidator {
	if config == nil {
		config = DefaultConfig()
	}
	return &DocumentValidator{
		logger: log,
		config: config,
	}
}

// ValidateFile checks name, size and content of an upload and rewinds it.
func (v *DocumentValidator) ValidateFile(file io.ReadSeeker, filename string, size int64) (*ValidationResult, error) {
	result := &ValidationResult{
		IsValid: true,
		FileInfo: FileInfo{
			Filename:  filepath.Base(filename),
			Size:      size,
			Extension: strings.ToLower(filepath.Ext(filename)),
		},
	}

	// 计算文件哈希
	hash, err := v.calculateHash(file)
	if err != nil {
		return nil, fmt.Errorf("failed to calculate hash: %w", err)
	}
	result.FileInfo.Hash = hash

	head, err := readHead(file, 512)
	if err != nil {
		return nil, fmt.Errorf("failed to read file header: %w", err)
	}
	result.FileInfo.MimeType = http.DetectContentType(head)

	v.performBasicValidation(result)
	v.validateMimeType(result)
	if result.FileInfo.Extension == ".pdf" {
		v.validatePDF(result, head)
	}

	if !result.IsValid {
		v.logger.Warn("Upload rejected",
			logger.String("filename", result.FileInfo.Filename),
			logger.Any("errors", result.Errors),
		)
	}
	return result, nil
}

// ValidateURL returns the video id of an accepted video link.
func (v *DocumentValidator) ValidateURL(rawURL string) (string, error) {
	rawURL = strings.TrimSpace(rawURL)
	allowed := false
	for _, host := range v.config.VideoHosts {
		if strings.Contains(rawURL, host) {
			allowed = true
			break
		}
	}
	if !allowed {
		return "", apperrors.NewValidationError("url", "only YouTube links are supported")
	}
	id, err := extractor.ParseVideoID(rawURL)
	if err != nil {
		return "", apperrors.NewValidationError("url", "cannot find a video id in the link")
	}
	return id, nil
}

// 基本验证
func (v *DocumentValidator) performBasicValidation(result *ValidationResult) {
	info := result.FileInfo
	if info.Size <= 0 {
		result.add("EMPTY_FILE", "file", "File is empty")
	}
	if info.Size > v.config.MaxFileSize {
		result.add("FILE_TOO_LARGE", "file", fmt.Sprintf("File size exceeds maximum limit of %d bytes", v.config.MaxFileSize))
	}
	if _, ok := v.config.AllowedTypes[info.Extension]; !ok {
		result.add("INVALID_FILE_TYPE", "file", fmt.Sprintf("File type %q is not allowed", info.Extension))
	}
}

// MIME类型验证
func (v *DocumentValidator) validateMimeType(result *ValidationResult) {
	allowed, ok := v.config.AllowedTypes[result.FileInfo.Extension]
	if !ok {
		return
	}
	for _, mime := range allowed {
		if mime == result.FileInfo.MimeType {
			return
		}
	}
	result.add("INVALID_MIME_TYPE", "file",
		fmt.Sprintf("Invalid MIME type %s for extension %s", result.FileInfo.MimeType, result.FileInfo.Extension))
}

// PDF特定验证
func (v *DocumentValidator) validatePDF(result *ValidationResult, head []byte) {
	if !strings.HasPrefix(string(head), pdfMagic) {
		result.add("INVALID_PDF", "file", "File does not start with a PDF header")
	}
}

// 计算文件哈希
func (v *DocumentValidator) calculateHash(file io.ReadSeeker) (string, error) {
	hash := sha256.New()
	if _, err := io.Copy(hash, file); err != nil {
		return "", err
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return "", err
	}
	return hex.EncodeToString(hash.Sum(nil)), nil
}

func readHead(file io.ReadSeeker, n int) ([]byte, error) {
	buf := make([]byte, n)
	read, err := io.ReadFull(file, buf)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return nil, err
	}
	// 重置文件指针
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	return buf[:read], nil
}
