package model

import (
	"errors"

	"github.com/Skufu/heartrisk/internal/dataset"
	"github.com/Skufu/heartrisk/internal/domain"
)

// Metrics is the classifier's score on the held-out split.
type Metrics struct {
	Accuracy  float64 `json:"accuracy"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
	// ConfusionMatrix is [[TN, FP], [FN, TP]].
	ConfusionMatrix [2][2]int `json:"confusion_matrix"`
	TestSize        int       `json:"test_size"`
	TrainSize       int       `json:"train_size"`
}

// Evaluate scores c on test. Undefined ratios (no predicted or actual positives) are 0.
func Evaluate(c *Classifier, test []dataset.Row, trainSize int) (Metrics, error) {
	if len(test) == 0 {
		return Metrics{}, errors.New("empty test split")
	}

	var cm [2][2]int
	for _, r := range test {
		pred, err := c.Score(r.Features)
		if err != nil {
			return Metrics{}, err
		}
		cm[r.Target][pred.Label]++
	}

	tn, fp, fn, tp := cm[0][0], cm[0][1], cm[1][0], cm[1][1]
	precision := ratio(tp, tp+fp)
	recall := ratio(tp, tp+fn)
	f1 := 0.0
	if precision+recall > 0 {
		f1 = 2 * precision * recall / (precision + recall)
	}

	return Metrics{
		Accuracy:        domain.Round4(ratio(tp+tn, len(test))),
		Precision:       domain.Round4(precision),
		Recall:          domain.Round4(recall),
		F1:              domain.Round4(f1),
		ConfusionMatrix: cm,
		TestSize:        len(test),
		TrainSize:       trainSize,
	}, nil
}

func ratio(a, b int) float64 {
	if b == 0 {
		return 0
	}
	return float64(a) / float64(b)
}
