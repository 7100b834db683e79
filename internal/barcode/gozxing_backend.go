package barcode

import (
	"context"
	"image"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/datamatrix"
	multiqr "github.com/makiuchi-d/gozxing/multi/qrcode"
	"github.com/makiuchi-d/gozxing/oned"
	"github.com/makiuchi-d/gozxing/qrcode"
)

type gozxingBackend struct{}

func (b *gozxingBackend) Decode(ctx context.Context, img image.Image, opts Options) ([]Result, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, nil
	}
	bitmap, err := gozxing.NewBinaryBitmap(gozxing.NewHybridBinarizer(gozxing.NewLuminanceSourceFromImage(img)))
	if err != nil {
		return nil, err
	}

	hints := map[gozxing.DecodeHintType]interface{}{}
	if opts.TryHarder {
		hints[gozxing.DecodeHintType_TRY_HARDER] = true
	}

	var out []Result
	seen := map[string]struct{}{}
	for _, f := range selectFormats(opts.Formats) {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		reader := newReader(f)
		if reader == nil {
			continue
		}
		for _, r := range decodeWith(reader, bitmap, hints, opts.Multi && f == FormatQR) {
			res := toResult(r)
			key := res.Format.String() + "\x00" + res.Value
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, res)
		}
	}
	return out, nil
}

// decodeWith treats every gozxing reader failure (not found, checksum,
// format) as "no symbol". gozxing only ships a multi-symbol reader for QR;
// other formats decode one symbol per bitmap.
func decodeWith(reader gozxing.Reader, bitmap *gozxing.BinaryBitmap, hints map[gozxing.DecodeHintType]interface{}, multiQR bool) []*gozxing.Result {
	if multiQR {
		results, err := multiqr.NewQRCodeMultiReader().DecodeMultiple(bitmap, hints)
		if err == nil && len(results) > 0 {
			return results
		}
	}
	r, err := reader.Decode(bitmap, hints)
	if err != nil || r == nil {
		return nil
	}
	return []*gozxing.Result{r}
}

var allFormats = []Format{
	FormatQR, FormatDataMatrix, FormatCode128, FormatCode39,
	FormatEAN13, FormatEAN8, FormatUPCA, FormatUPCE, FormatITF, FormatCodabar,
}

func selectFormats(fs []Format) []Format {
	if len(fs) == 0 {
		return allFormats
	}
	return fs
}

func newReader(f Format) gozxing.Reader {
	switch f {
	case FormatQR:
		return qrcode.NewQRCodeReader()
	case FormatDataMatrix:
		return datamatrix.NewDataMatrixReader()
	case FormatCode128:
		return oned.NewCode128Reader()
	case FormatCode39:
		return oned.NewCode39Reader()
	case FormatEAN8:
		return oned.NewEAN8Reader()
	case FormatEAN13:
		return oned.NewEAN13Reader()
	case FormatUPCA:
		return oned.NewUPCAReader()
	case FormatUPCE:
		return oned.NewUPCEReader()
	case FormatITF:
		return oned.NewITFReader()
	case FormatCodabar:
		return oned.NewCodaBarReader()
	default:
		return nil
	}
}

func toResult(r *gozxing.Result) Result {
	return Result{
		Format: mapFormatFromZXing(r.GetBarcodeFormat()),
		Value:  r.GetText(),
		BBox:   rectFromPoints(r.GetResultPoints()),
	}
}

func mapFormatFromZXing(bf gozxing.BarcodeFormat) Format {
	switch bf {
	case gozxing.BarcodeFormat_QR_CODE:
		return FormatQR
	case gozxing.BarcodeFormat_DATA_MATRIX:
		return FormatDataMatrix
	case gozxing.BarcodeFormat_CODE_128:
		return FormatCode128
	case gozxing.BarcodeFormat_CODE_39:
		return FormatCode39
	case gozxing.BarcodeFormat_EAN_8:
		return FormatEAN8
	case gozxing.BarcodeFormat_EAN_13:
		return FormatEAN13
	case gozxing.BarcodeFormat_UPC_A:
		return FormatUPCA
	case gozxing.BarcodeFormat_UPC_E:
		return FormatUPCE
	case gozxing.BarcodeFormat_ITF:
		return FormatITF
	case gozxing.BarcodeFormat_CODABAR:
		return FormatCodabar
	default:
		return FormatUnknown
	}
}

func rectFromPoints(pts []gozxing.ResultPoint) image.Rectangle {
	if len(pts) == 0 {
		return image.Rectangle{}
	}
	minX, minY := pts[0].GetX(), pts[0].GetY()
	maxX, maxY := minX, minY
	for _, p := range pts[1:] {
		minX, maxX = min(minX, p.GetX()), max(maxX, p.GetX())
		minY, maxY = min(minY, p.GetY()), max(maxY, p.GetY())
	}
	return image.Rect(int(minX), int(minY), int(maxX)+1, int(maxY)+1)
}
