package landmark

// TPosePoints returns normalized landmarks of a person facing the camera with both arms
// stretched out horizontally. Image Y grows downwards.
func TPosePoints() []Landmark {
	p := make([]Landmark, NumLandmarks)
	set := func(i Index, x, y, z float64) {
		p[i] = Landmark{X: x, Y: y, Z: z, Visibility: 0.99, Presence: 0.99}
	}

	// Head
	set(Nose, 0.50, 0.20, -0.30)
	set(LeftEyeInner, 0.51, 0.18, -0.28)
	set(LeftEye, 0.52, 0.18, -0.28)
	set(LeftEyeOuter, 0.53, 0.18, -0.28)
	set(RightEyeInner, 0.49, 0.18, -0.28)
	set(RightEye, 0.48, 0.18, -0.28)
	set(RightEyeOuter, 0.47, 0.18, -0.28)
	set(LeftEar, 0.55, 0.19, -0.15)
	set(RightEar, 0.45, 0.19, -0.15)
	set(MouthLeft, 0.52, 0.23, -0.27)
	set(MouthRight, 0.48, 0.23, -0.27)

	// Torso. The subject's left side appears on the image's right.
	set(LeftShoulder, 0.60, 0.30, -0.05)
	set(RightShoulder, 0.40, 0.30, -0.05)
	set(LeftHip, 0.56, 0.55, 0.0)
	set(RightHip, 0.44, 0.55, 0.0)

	// Arms out horizontally
	set(LeftElbow, 0.72, 0.30, -0.05)
	set(RightElbow, 0.28, 0.30, -0.05)
	set(LeftWrist, 0.84, 0.30, -0.05)
	set(RightWrist, 0.16, 0.30, -0.05)
	set(LeftPinky, 0.87, 0.31, -0.05)
	set(RightPinky, 0.13, 0.31, -0.05)
	set(LeftIndex, 0.88, 0.30, -0.05)
	set(RightIndex, 0.12, 0.30, -0.05)
	set(LeftThumb, 0.86, 0.29, -0.06)
	set(RightThumb, 0.14, 0.29, -0.06)

	// Legs straight down
	set(LeftKnee, 0.56, 0.72, 0.0)
	set(RightKnee, 0.44, 0.72, 0.0)
	set(LeftAnkle, 0.56, 0.90, 0.02)
	set(RightAnkle, 0.44, 0.90, 0.02)
	set(LeftHeel, 0.56, 0.92, 0.04)
	set(RightHeel, 0.44, 0.92, 0.04)
	set(LeftFootIndex, 0.57, 0.93, -0.04)
	set(RightFootIndex, 0.43, 0.93, -0.04)

	return p
}

// ArmsUpPoints returns the T-pose with both forearms raised above the elbows.
func ArmsUpPoints() []Landmark {
	p := TPosePoints()
	raise := func(wrist, elbow Index) {
		e := p[elbow]
		p[wrist] = Landmark{X: e.X, Y: e.Y - 0.12, Z: e.Z, Visibility: 0.99, Presence: 0.99}
	}
	raise(LeftWrist, LeftElbow)
	raise(RightWrist, RightElbow)
	for _, pair := range [][2]Index{
		{LeftPinky, LeftWrist}, {LeftIndex, LeftWrist}, {LeftThumb, LeftWrist},
		{RightPinky, RightWrist}, {RightIndex, RightWrist}, {RightThumb, RightWrist},
	} {
		w := p[pair[1]]
		p[pair[0]] = Landmark{X: w.X, Y: w.Y - 0.03, Z: w.Z, Visibility: 0.99, Presence: 0.99}
	}
	return p
}
