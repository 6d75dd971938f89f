package convert

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

var disableConfigDir sync.Once

// validate checks the produced file with pdfcpu in relaxed mode and returns
// the page count pdfcpu sees.
func validate(pdf []byte) (int, error) {
	disableConfigDir.Do(api.DisableConfigDir)

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	ctx, err := api.ReadValidateAndOptimize(bytes.NewReader(pdf), conf)
	if err != nil {
		return 0, err
	}
	if ctx.PageCount <= 0 {
		return 0, fmt.Errorf("document has no pages")
	}
	return ctx.PageCount, nil
}
