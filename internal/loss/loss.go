// Package loss provides regression loss functions.
package loss

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// Loss is a loss function with derivative.
type Loss interface {
	// Forward computes the mean loss between predicted and true values.
	Forward(yPred, yTrue []float64) float64

	// Backward stores dL/dyPred in grad, which must have the same length as
	// yPred.
	Backward(yPred, yTrue, grad []float64)
}

// ByName returns the loss called name. delta is only used by "huber".
func ByName(name string, delta float64) (Loss, error) {
	switch name {
	case "mse":
		return MSE{}, nil
	case "huber":
		if !(delta > 0) {
			return nil, fmt.Errorf("huber delta must be > 0, got %g", delta)
		}
		return Huber{Delta: delta}, nil
	case "l1":
		return L1Loss{}, nil
	default:
		return nil, fmt.Errorf("unknown loss: %s", name)
	}
}

func checkLen(name string, yPred, yTrue []float64) {
	if len(yPred) != len(yTrue) {
		panic(name + ": prediction and target must have same length")
	}
}

// MSE (Mean Squared Error) loss.
type MSE struct{}

// Forward computes mean squared error: (1/n) * sum((y_pred - y_true)^2)
func (MSE) Forward(yPred, yTrue []float64) float64 {
	checkLen("MSE", yPred, yTrue)
	d := floats.Distance(yPred, yTrue, 2)
	return d * d / float64(len(yPred))
}

// Backward computes dL/dy_pred = (2/n) * (y_pred - y_true).
func (MSE) Backward(yPred, yTrue, grad []float64) {
	checkLen("MSE", yPred, yTrue)
	floats.SubTo(grad, yPred, yTrue)
	floats.Scale(2/float64(len(yPred)), grad)
}

// Huber loss for robust regression.
type Huber struct {
	Delta float64 // Threshold for quadratic/linear transition
}

func (h Huber) Forward(yPred, yTrue []float64) float64 {
	checkLen("Huber", yPred, yTrue)
	var sum float64
	for i, p := range yPred {
		diff := math.Abs(p - yTrue[i])
		if diff <= h.Delta {
			sum += 0.5 * diff * diff
		} else {
			sum += h.Delta * (diff - 0.5*h.Delta)
		}
	}
	return sum / float64(len(yPred))
}

func (h Huber) Backward(yPred, yTrue, grad []float64) {
	checkLen("Huber", yPred, yTrue)
	floats.SubTo(grad, yPred, yTrue)
	for i, diff := range grad {
		if math.Abs(diff) > h.Delta {
			grad[i] = h.Delta * math.Copysign(1, diff)
		}
	}
	floats.Scale(1/float64(len(yPred)), grad)
}

// L1Loss (Mean Absolute Error) loss.
type L1Loss struct{}

// Forward computes mean absolute error: (1/n) * sum(|y_pred - y_true|)
func (L1Loss) Forward(yPred, yTrue []float64) float64 {
	checkLen("L1Loss", yPred, yTrue)
	return floats.Distance(yPred, yTrue, 1) / float64(len(yPred))
}

// Backward computes dL/dy_pred = (1/n) * sign(y_pred - y_true).
func (L1Loss) Backward(yPred, yTrue, grad []float64) {
	checkLen("L1Loss", yPred, yTrue)
	factor := 1 / float64(len(yPred))
	for i, p := range yPred {
		switch diff := p - yTrue[i]; {
		case diff > 0:
			grad[i] = factor
		case diff < 0:
			grad[i] = -factor
		default:
			grad[i] = 0
		}
	}
}
