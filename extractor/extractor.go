package extractor

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"path/filepath"
	"strings"

	_ "image/jpeg"

	"code.sajari.com/docconv/v2"
	"github.com/gen2brain/go-fitz"
	"github.com/ledongthuc/pdf"
)

const (
    MimePDF          = "application/pdf"
    MimeWord         = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
    MimePresentation = "application/vnd.openxmlformats-officedocument.presentationml.presentation"
    MimePNG          = "image/png"
    MimeJPEG         = "image/jpeg"
)

// PDFModeRaster rasterizes every PDF page into an image for transcription,
// PDFModeText pulls the embedded text layer instead.
const (
    PDFModeRaster = "raster"
    PDFModeText   = "text"
)

type Kind int

const (
    KindPDF Kind = iota
    KindWord
    KindPresentation
    KindImage
)

// UploadedFile is one user-submitted file, consumed once per generation run.
type UploadedFile struct {
    Name        string
    ContentType string
    Data        []byte
}

// PendingImage is a rasterized PDF page or a direct image upload awaiting
// transcription by the vision model.
type PendingImage struct {
    Source   string
    MIMEType string
    Data     []byte
}

// Result partitions the uploads: every file contributes to exactly one of
// Text or Images.
type Result struct {
    Text   string
    Images []PendingImage
}

type UnsupportedFormatError struct {
    Name        string
    ContentType string
}

func (e *UnsupportedFormatError) Error() string {
    return fmt.Sprintf("unsupported file format %q (content type %q)", e.Name, e.ContentType)
}

type Options struct {
    PDFMode   string
    RasterDPI int
}

type Extractor struct {
    logger *slog.Logger
    opts   Options
}

func New(logger *slog.Logger, opts Options) *Extractor {
    if opts.PDFMode == "" {
        opts.PDFMode = PDFModeRaster
    }
    if opts.RasterDPI <= 0 {
        opts.RasterDPI = 150
    }
    return &Extractor{
        logger: logger,
        opts:   opts,
    }
}

// Classify maps a file to its accumulator by declared content type, falling
// back to the filename extension. Unknown types are rejected rather than
// falling through to the image branch.
func Classify(f UploadedFile) (Kind, error) {
    switch f.ContentType {
    case MimePDF:
        return KindPDF, nil
    case MimeWord:
        return KindWord, nil
    case MimePresentation:
        return KindPresentation, nil
    case MimePNG, MimeJPEG:
        return KindImage, nil
    }

    switch strings.ToLower(filepath.Ext(f.Name)) {
    case ".pdf":
        return KindPDF, nil
    case ".docx":
        return KindWord, nil
    case ".pptx":
        return KindPresentation, nil
    case ".png", ".jpg", ".jpeg":
        return KindImage, nil
    }

    return 0, &UnsupportedFormatError{Name: f.Name, ContentType: f.ContentType}
}

// Extract processes the uploads in order, accumulating text from documents and
// pending images from PDF pages and direct image uploads.
func (e *Extractor) Extract(ctx context.Context, files []UploadedFile) (*Result, error) {
    res := &Result{}
    var texts []string

    for _, f := range files {
        kind, err := Classify(f)
        if err != nil {
            return nil, err
        }

        e.logger.Info("Processing uploaded file",
            slog.String("filename", f.Name),
            slog.String("content_type", f.ContentType),
            slog.Int("size", len(f.Data)))

        switch kind {
        case KindPDF:
            if e.opts.PDFMode == PDFModeText {
                text, err := e.extractTextFromPDF(f)
                if err != nil {
                    return nil, err
                }
                texts = append(texts, text)
            } else {
                images, err := e.rasterizePDF(ctx, f)
                if err != nil {
                    return nil, err
                }
                res.Images = append(res.Images, images...)
            }

        case KindWord:
            text, err := e.extractOfficeText(f, MimeWord)
            if err != nil {
                return nil, err
            }
            texts = append(texts, text)

        case KindPresentation:
            text, err := e.extractOfficeText(f, MimePresentation)
            if err != nil {
                return nil, err
            }
            texts = append(texts, text)

        case KindImage:
            img, err := e.pendingImage(f)
            if err != nil {
                return nil, err
            }
            res.Images = append(res.Images, img)
        }
    }

    res.Text = strings.Join(texts, "\n")
    return res, nil
}

// extractOfficeText handles both .docx (paragraphs in document order) and
// .pptx (slide order then shape order), newline separated.
func (e *Extractor) extractOfficeText(f UploadedFile, mimeType string) (string, error) {
    result, err := docconv.Convert(bytes.NewReader(f.Data), mimeType, false)
    if err != nil {
        e.logger.Error("Failed to convert document",
            slog.String("filename", f.Name),
            slog.String("error", err.Error()))
        return "", fmt.Errorf("failed to extract text from %s: %w", f.Name, err)
    }

    text := strings.TrimSpace(result.Body)
    e.logger.Debug("Extracted document text",
        slog.String("filename", f.Name),
        slog.Int("text_length", len(text)))
    return text, nil
}

func (e *Extractor) extractTextFromPDF(f UploadedFile) (string, error) {
    reader, err := pdf.NewReader(bytes.NewReader(f.Data), int64(len(f.Data)))
    if err != nil {
        e.logger.Error("Failed to create PDF reader",
            slog.String("filename", f.Name),
            slog.String("error", err.Error()))
        return "", fmt.Errorf("failed to read PDF %s: %w", f.Name, err)
    }

    totalPage := reader.NumPage()
    var fullText strings.Builder
    for pageIndex := 1; pageIndex <= totalPage; pageIndex++ {
        page := reader.Page(pageIndex)
        if page.V.IsNull() {
            e.logger.Warn("Null page encountered",
                slog.String("filename", f.Name),
                slog.Int("page_number", pageIndex))
            continue
        }

        text, err := page.GetPlainText(nil)
        if err != nil {
            return "", fmt.Errorf("failed to extract text from page %d of %s: %w", pageIndex, f.Name, err)
        }
        fullText.WriteString(text)
    }

    e.logger.Info("Extracted embedded PDF text",
        slog.String("filename", f.Name),
        slog.Int("total_pages", totalPage),
        slog.Int("text_length", fullText.Len()))

    return strings.TrimSpace(fullText.String()), nil
}

// rasterizePDF renders every page at the configured DPI so scanned and
// handwritten pages get the same treatment as typed ones.
func (e *Extractor) rasterizePDF(ctx context.Context, f UploadedFile) ([]PendingImage, error) {
    doc, err := fitz.NewFromMemory(f.Data)
    if err != nil {
        e.logger.Error("Failed to open PDF for rasterization",
            slog.String("filename", f.Name),
            slog.String("error", err.Error()))
        return nil, fmt.Errorf("failed to open PDF %s: %w", f.Name, err)
    }
    defer doc.Close()

    pageCount := doc.NumPage()
    if pageCount == 0 {
        return nil, fmt.Errorf("PDF %s has no pages", f.Name)
    }

    images := make([]PendingImage, 0, pageCount)
    for pageNum := 0; pageNum < pageCount; pageNum++ {
        select {
        case <-ctx.Done():
            return nil, ctx.Err()
        default:
        }

        img, err := doc.ImageDPI(pageNum, float64(e.opts.RasterDPI))
        if err != nil {
            return nil, fmt.Errorf("failed to rasterize page %d of %s: %w", pageNum+1, f.Name, err)
        }

        data, err := encodePNG(img)
        if err != nil {
            return nil, fmt.Errorf("failed to encode page %d of %s: %w", pageNum+1, f.Name, err)
        }

        images = append(images, PendingImage{
            Source:   fmt.Sprintf("%s#page=%d", f.Name, pageNum+1),
            MIMEType: MimePNG,
            Data:     data,
        })
    }

    e.logger.Info("Rasterized PDF pages",
        slog.String("filename", f.Name),
        slog.Int("pages", pageCount),
        slog.Int("dpi", e.opts.RasterDPI))

    return images, nil
}

// pendingImage validates the upload decodes as an image and passes the bytes
// through unchanged.
func (e *Extractor) pendingImage(f UploadedFile) (PendingImage, error) {
    cfg, format, err := image.DecodeConfig(bytes.NewReader(f.Data))
    if err != nil {
        return PendingImage{}, fmt.Errorf("failed to decode image %s: %w", f.Name, err)
    }

    mimeType := f.ContentType
    if mimeType != MimePNG && mimeType != MimeJPEG {
        if format == "jpeg" {
            mimeType = MimeJPEG
        } else {
            mimeType = MimePNG
        }
    }

    e.logger.Debug("Accepted image upload",
        slog.String("filename", f.Name),
        slog.String("format", format),
        slog.Int("width", cfg.Width),
        slog.Int("height", cfg.Height))

    return PendingImage{
        Source:   f.Name,
        MIMEType: mimeType,
        Data:     f.Data,
    }, nil
}

func encodePNG(img image.Image) ([]byte, error) {
    var buf bytes.Buffer
    if err := png.Encode(&buf, img); err != nil {
        return nil, err
    }
    return buf.Bytes(), nil
}
