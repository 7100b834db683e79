package ocr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"

	gvision "cloud.google.com/go/vision/v2/apiv1"
	visionpb "cloud.google.com/go/vision/v2/apiv1/visionpb"
	"google.golang.org/api/option"
)

type annotateFunc func(ctx context.Context, req *visionpb.BatchAnnotateImagesRequest) (*visionpb.BatchAnnotateImagesResponse, error)

// CloudVision sends crops to the Google Cloud Vision TEXT_DETECTION feature.
// The service always localises; in recognition-only mode the word-level
// annotations are still returned in service order.
type CloudVision struct {
	annotate annotateFunc
	close    func() error
	hints    []string
}

// CloudVisionConfig configures the Cloud Vision engine.
type CloudVisionConfig struct {
	CredentialsFile string   `mapstructure:"credentials_file" yaml:"credentials_file"`
	LanguageHints   []string `mapstructure:"language_hints"   yaml:"language_hints"`
}

// NewCloudVision creates a client using the credentials file when set and
// Application Default Credentials otherwise.
func NewCloudVision(ctx context.Context, cfg CloudVisionConfig) (*CloudVision, error) {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	client, err := gvision.NewImageAnnotatorClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create vision client: %w", err)
	}
	return &CloudVision{
		annotate: func(ctx context.Context, req *visionpb.BatchAnnotateImagesRequest) (*visionpb.BatchAnnotateImagesResponse, error) {
			return client.BatchAnnotateImages(ctx, req)
		},
		close: client.Close,
		hints: cfg.LanguageHints,
	}, nil
}

// Recognize implements Engine.
func (c *CloudVision) Recognize(ctx context.Context, img image.Image, _ Options) ([]Fragment, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode crop: %w", err)
	}
	req := &visionpb.BatchAnnotateImagesRequest{
		Requests: []*visionpb.AnnotateImageRequest{
			{
				Image:    &visionpb.Image{Content: buf.Bytes()},
				Features: []*visionpb.Feature{{Type: visionpb.Feature_TEXT_DETECTION}},
			},
		},
	}
	if len(c.hints) > 0 {
		req.Requests[0].ImageContext = &visionpb.ImageContext{LanguageHints: c.hints}
	}

	resp, err := c.annotate(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("vision API request failed: %w", err)
	}
	return fragmentsFromResponse(resp)
}

// fragmentsFromResponse converts word-level annotations. The first text
// annotation is the full-page text and is skipped.
func fragmentsFromResponse(resp *visionpb.BatchAnnotateImagesResponse) ([]Fragment, error) {
	if resp == nil || len(resp.GetResponses()) == 0 {
		return nil, nil
	}
	r := resp.GetResponses()[0]
	if r.GetError() != nil {
		return nil, fmt.Errorf("vision API error: %s", r.GetError().GetMessage())
	}
	ann := r.GetTextAnnotations()
	if len(ann) <= 1 {
		return nil, nil
	}
	frags := make([]Fragment, 0, len(ann)-1)
	for _, a := range ann[1:] {
		conf := float64(a.GetConfidence())
		if conf == 0 {
			conf = 1
		}
		frags = append(frags, Fragment{
			Text:       a.GetDescription(),
			Confidence: conf,
			Box:        polyBounds(a.GetBoundingPoly()),
		})
	}
	return frags, nil
}

func polyBounds(p *visionpb.BoundingPoly) image.Rectangle {
	vs := p.GetVertices()
	if len(vs) == 0 {
		return image.Rectangle{}
	}
	minX, minY := vs[0].GetX(), vs[0].GetY()
	maxX, maxY := minX, minY
	for _, v := range vs[1:] {
		minX, maxX = min(minX, v.GetX()), max(maxX, v.GetX())
		minY, maxY = min(minY, v.GetY()), max(maxY, v.GetY())
	}
	return image.Rect(int(minX), int(minY), int(maxX), int(maxY))
}

// Close releases the underlying client.
func (c *CloudVision) Close() error {
	if c.close == nil {
		return errors.New("cloud vision client not initialised")
	}
	return c.close()
}
