package main

import (
	"fmt"
	"math"
	"math/rand/v2"

	pf "github.com/jhoydich/pflocalize"
)

func main() {
	src := rand.NewPCG(7, 7)
	noise := pf.NoiseModel{MoveStd: .5, RotateStd: .02, SensorStd: 2}
	landmarks := []pf.Landmark{{X: 20, Y: 20}, {X: 80, Y: 30}, {X: 50, Y: 90}}

	filter, err := pf.NewParticleSet(2000, 100, 100, src)
	if err != nil {
		panic(err)
	}

	motion := pf.NewMotionModel(noise, src)
	sensor := pf.NewSensor(noise, src)
	p := pf.Pose{X: 10, Y: 50, Heading: 0}

	for i := 0; i < 20; i++ {
		// walk a square, turning a quarter every five steps
		if i > 0 && i%5 == 0 {
			p = motion.Rotate(p, math.Pi/2)
			filter.Predict(0, math.Pi/2, noise)
		}
		p = motion.Translate(p, 5)
		filter.Predict(5, 0, noise)

		if err := filter.Reweight(landmarks, sensor.Observe(p, landmarks)); err != nil {
			panic(err)
		}
		filter.Resample()
		est := filter.EstimatePose()
		fmt.Printf("step %2d  true (%6.2f, %6.2f, %4.2f)  filter (%6.2f, %6.2f, %4.2f)  ess %.0f\n",
			i, p.X, p.Y, p.Heading, est.X, est.Y, est.Heading, filter.EffectiveSampleSize())
	}
}
