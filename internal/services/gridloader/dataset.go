package gridloader

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"time"

	"github.com/batchatco/go-native-netcdf/netcdf"
	"github.com/batchatco/go-native-netcdf/netcdf/api"

	"github.com/bbernstein/weathervis-go/pkg/geo"
)

// Variable is a numeric variable read from a gridded source, flattened in
// row-major order.
type Variable struct {
	Name       string
	Dims       []string
	Shape      []int
	Values     []float64
	Attributes map[string]interface{}
}

// Array returns the variable as a geo.Array.
func (v Variable) Array() geo.Array {
	return geo.Array{Name: v.Name, Shape: v.Shape, Data: v.Values}
}

// StringAttr returns a string attribute, or "" when absent.
func (v Variable) StringAttr(key string) string {
	s, _ := v.Attributes[key].(string)
	return s
}

// Dataset is an opened gridded source.
type Dataset interface {
	Variables() []string
	Variable(name string) (Variable, bool)
	Close() error
}

// Opener opens a source locator: a local path or an http(s) URL.
type Opener interface {
	Open(ctx context.Context, locator string) (Dataset, error)
}

// IsURL reports whether locator has a scheme and a host.
func IsURL(locator string) bool {
	u, err := url.Parse(locator)
	return err == nil && u.Scheme != "" && u.Host != ""
}

// NetCDFOpener reads netCDF files. URLs are downloaded into CacheDir first.
type NetCDFOpener struct {
	CacheDir   string
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// NewNetCDFOpener creates an opener caching downloads in cacheDir.
func NewNetCDFOpener(cacheDir string, logger *slog.Logger) *NetCDFOpener {
	return &NetCDFOpener{
		CacheDir: cacheDir,
		HTTPClient: &http.Client{
			Timeout: 10 * time.Minute, // model files are large
		},
		Logger: logger,
	}
}

// Open implements Opener.
func (o *NetCDFOpener) Open(ctx context.Context, locator string) (Dataset, error) {
	if locator == "" {
		return nil, &SourceError{Source: locator, Err: fmt.Errorf("empty locator")}
	}
	path := locator
	if IsURL(locator) {
		var err error
		if path, err = o.download(ctx, locator); err != nil {
			return nil, &SourceError{Source: locator, Err: err}
		}
	}
	group, err := netcdf.Open(path)
	if err != nil {
		return nil, &SourceError{Source: locator, Err: err}
	}
	return &netcdfDataset{group: group}, nil
}

// download fetches rawURL into the cache, reusing a previous download.
func (o *NetCDFOpener) download(ctx context.Context, rawURL string) (string, error) {
	if err := os.MkdirAll(o.CacheDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create cache directory: %w", err)
	}
	sum := sha1.Sum([]byte(rawURL))
	dest := filepath.Join(o.CacheDir, hex.EncodeToString(sum[:])+".nc")
	if _, err := os.Stat(dest); err == nil {
		o.logger().Debug("using cached grid source", "url", rawURL, "path", dest)
		return dest, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", "weathervis-go")

	resp, err := o.HTTPClient.Do(req)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	tmp, err := os.CreateTemp(o.CacheDir, "download-*")
	if err != nil {
		return "", err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	written, err := io.Copy(tmp, resp.Body)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return "", err
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return "", err
	}

	o.logger().Info("downloaded grid source", "url", rawURL, "megabytes", float64(written)/(1024*1024))
	return dest, nil
}

func (o *NetCDFOpener) logger() *slog.Logger {
	if o.Logger == nil {
		return slog.Default()
	}
	return o.Logger
}

type netcdfDataset struct {
	group api.Group
}

func (d *netcdfDataset) Variables() []string {
	names := d.group.ListVariables()
	sort.Strings(names)
	return names
}

func (d *netcdfDataset) Variable(name string) (Variable, bool) {
	v, err := d.group.GetVariable(name)
	if err != nil || v == nil {
		return Variable{}, false
	}
	values, shape := flatten(v.Values)
	attrs := map[string]interface{}{}
	if v.Attributes != nil {
		for _, k := range v.Attributes.Keys() {
			val, _ := v.Attributes.Get(k)
			attrs[k] = val
		}
	}
	return Variable{
		Name:       name,
		Dims:       v.Dimensions,
		Shape:      shape,
		Values:     values,
		Attributes: attrs,
	}, true
}

func (d *netcdfDataset) Close() error {
	d.group.Close()
	return nil
}

// flatten converts nested numeric slices of any depth into row-major values
// and their shape. Non-numeric data yields a nil slice with the shape kept.
func flatten(values interface{}) ([]float64, []int) {
	rv := reflect.ValueOf(values)
	var shape []int
	for cur := rv; cur.Kind() == reflect.Slice; {
		shape = append(shape, cur.Len())
		if cur.Len() == 0 {
			break
		}
		cur = cur.Index(0)
	}
	if len(shape) == 0 {
		if f, ok := toFloat(rv); ok {
			return []float64{f}, nil
		}
		return nil, nil
	}

	out := make([]float64, 0, product(shape))
	var walk func(v reflect.Value) bool
	walk = func(v reflect.Value) bool {
		if v.Kind() == reflect.Slice {
			for i := 0; i < v.Len(); i++ {
				if !walk(v.Index(i)) {
					return false
				}
			}
			return true
		}
		f, ok := toFloat(v)
		if ok {
			out = append(out, f)
		}
		return ok
	}
	if !walk(rv) {
		return nil, shape
	}
	return out, shape
}

func toFloat(v reflect.Value) (float64, bool) {
	switch v.Kind() {
	case reflect.Float32, reflect.Float64:
		return v.Float(), true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(v.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(v.Uint()), true
	}
	return 0, false
}

func product(shape []int) int {
	n := 1
	for _, s := range shape {
		n *= s
	}
	return n
}
