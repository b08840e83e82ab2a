package pockettts_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/haivivi/pockettts/pkg/kv"
	"github.com/haivivi/pockettts/pkg/pockettts"
)

func TestVoiceCacheThroughModel(t *testing.T) {
	ctx := context.Background()
	cache := pockettts.NewVoiceCache(kv.NewMemory(nil))
	m := loadModel(t, pockettts.WithVoiceCache(cache))
	data := wavBytes(t, sine(200, 1, 24000), 24000)

	a, err := m.VoiceStateFromAudioBytes(ctx, data)
	if err != nil {
		t.Fatal(err)
	}
	entries, err := cache.List(ctx, m.Fingerprint())
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Frames != a.Frames() {
		t.Fatalf("cache entries = %+v; want one with %d frames", entries, a.Frames())
	}

	b, err := m.VoiceStateFromAudioBytes(ctx, data)
	if err != nil {
		t.Fatal(err)
	}
	pa, _ := a.MarshalPrompt()
	pb, _ := b.MarshalPrompt()
	if !bytes.Equal(pa, pb) {
		t.Error("cached voice differs from encoded voice")
	}

	// A different model fingerprint does not see the entry.
	if other, _ := cache.List(ctx, "other@builtin"); len(other) != 0 {
		t.Errorf("entries under other fingerprint = %+v", other)
	}
}

// fakeS3 serves objects from memory.
type fakeS3 struct {
	objects map[string][]byte
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	data, ok := f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) PutObject(context.Context, *s3.PutObjectInput, ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	return nil, errors.New("read only")
}

func (f *fakeS3) DeleteObject(context.Context, *s3.DeleteObjectInput, ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	return nil, errors.New("read only")
}

func (f *fakeS3) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	if _, ok := f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)]; !ok {
		return nil, &types.NotFound{}
	}
	return &s3.HeadObjectOutput{}, nil
}

func TestS3ModelAndVoice(t *testing.T) {
	ctx := context.Background()
	client := &fakeS3{objects: map[string][]byte{
		"models/pocket/manifest.yaml":  []byte("variant: remote\nbackend: reference\nsample_rate: 24000\n"),
		"models/voices/alice.wav":      wavBytes(t, sine(240, 1, 24000), 24000),
		"models/voices/nested/bob.wav": wavBytes(t, sine(160, 1, 24000), 24000),
	}}

	m, err := pockettts.LoadFromDir(ctx, "", "s3://models/pocket", pockettts.WithS3Client(client))
	if err != nil {
		t.Fatalf("LoadFromDir: %v", err)
	}
	defer m.Close()
	if m.Variant() != "remote" {
		t.Errorf("Variant() = %q; want remote", m.Variant())
	}

	for _, p := range []string{"s3://models/voices/alice.wav", "s3://models/voices/nested/bob.wav"} {
		v, err := m.VoiceStateFromPath(ctx, p)
		if err != nil {
			t.Fatalf("VoiceStateFromPath(%s): %v", p, err)
		}
		if v.Frames() == 0 {
			t.Errorf("%s: no frames", p)
		}
	}
	if _, err := m.VoiceStateFromPath(ctx, "s3://models/voices/missing.wav"); !errors.Is(err, pockettts.ErrVoiceAudio) {
		t.Errorf("missing object = %v; want ErrVoiceAudio", err)
	}
}
