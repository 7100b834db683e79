package ocr

import (
	"context"
	"errors"
	"image"
	"testing"

	visionpb "cloud.google.com/go/vision/v2/apiv1/visionpb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func poly(x0, y0, x1, y1 int32) *visionpb.BoundingPoly {
	return &visionpb.BoundingPoly{Vertices: []*visionpb.Vertex{
		{X: x0, Y: y0}, {X: x1, Y: y0}, {X: x1, Y: y1}, {X: x0, Y: y1},
	}}
}

func TestCloudVision_Recognize(t *testing.T) {
	var got *visionpb.BatchAnnotateImagesRequest
	cv := &CloudVision{
		hints: []string{"de"},
		annotate: func(_ context.Context, req *visionpb.BatchAnnotateImagesRequest) (*visionpb.BatchAnnotateImagesResponse, error) {
			got = req
			return &visionpb.BatchAnnotateImagesResponse{Responses: []*visionpb.AnnotateImageResponse{{
				TextAnnotations: []*visionpb.EntityAnnotation{
					{Description: "MHD 2026-10-17", BoundingPoly: poly(0, 0, 90, 20)},
					{Description: "MHD", BoundingPoly: poly(0, 0, 30, 20)},
					{Description: "2026-10-17", BoundingPoly: poly(35, 2, 90, 20)},
				},
			}}}, nil
		},
	}

	frags, err := cv.Recognize(context.Background(), image.NewGray(image.Rect(0, 0, 4, 4)), Options{RecognitionOnly: true})
	require.NoError(t, err)
	require.Len(t, frags, 2)
	assert.Equal(t, "MHD", frags[0].Text)
	assert.Equal(t, image.Rect(35, 2, 90, 20), frags[1].Box)
	assert.InDelta(t, 1.0, frags[1].Confidence, 1e-9)
	assert.Equal(t, "MHD2026-10-17", Join(frags))

	require.NotNil(t, got)
	require.Len(t, got.GetRequests(), 1)
	assert.NotEmpty(t, got.GetRequests()[0].GetImage().GetContent())
	assert.Equal(t, visionpb.Feature_TEXT_DETECTION, got.GetRequests()[0].GetFeatures()[0].GetType())
	assert.Equal(t, []string{"de"}, got.GetRequests()[0].GetImageContext().GetLanguageHints())
}

func TestCloudVision_Errors(t *testing.T) {
	boom := errors.New("unavailable")
	cv := &CloudVision{annotate: func(context.Context, *visionpb.BatchAnnotateImagesRequest) (*visionpb.BatchAnnotateImagesResponse, error) {
		return nil, boom
	}}
	_, err := cv.Recognize(context.Background(), image.NewGray(image.Rect(0, 0, 2, 2)), Options{})
	require.ErrorIs(t, err, boom)

	_, err = fragmentsFromResponse(&visionpb.BatchAnnotateImagesResponse{Responses: []*visionpb.AnnotateImageResponse{{
		Error: nil,
	}}})
	require.NoError(t, err)
	assert.Error(t, (&CloudVision{}).Close())
}

func TestFragmentsFromResponse_Empty(t *testing.T) {
	frags, err := fragmentsFromResponse(nil)
	require.NoError(t, err)
	assert.Empty(t, frags)
	assert.Equal(t, image.Rectangle{}, polyBounds(nil))
}
