package retarget

import (
	"github.com/go-gl/mathgl/mgl64"

	"github.com/ayusman/minime/internal/landmark"
)

// AvatarRigged is the identifier of the bundled 19-bone humanoid.
const AvatarRigged = "avatar_rigged"

var (
	alongX    = mgl64.Vec3{1, 0, 0}
	alongNegX = mgl64.Vec3{-1, 0, 0}
	down      = mgl64.Vec3{0, -1, 0}
	forward   = mgl64.Vec3{0, 0, 1}
)

// AvatarRiggedMap returns the map for the bundled humanoid. The image is flipped
// vertically and scaled so that a subject filling the frame is about two units tall,
// with the hips landing near the bind-pose hip height.
func AvatarRiggedMap() *Map {
	affine := Affine{
		FlipY:  true,
		Scale:  mgl64.Vec2{2, 2},
		Depth:  -1,
		Offset: mgl64.Vec3{-1, 0, 0},
	}

	look := func(joint string, from, to landmark.Index, axis mgl64.Vec3) Rule {
		return Rule{Mode: LookAt, Joint: joint, From: from, To: to, HasTo: true, Forward: axis, MinVisibility: 0.5}
	}

	rules := []Rule{
		{Mode: Direct, Joint: "Hips", From: landmark.LeftHip, To: landmark.RightHip, HasTo: true},

		look("LeftUpperArm", landmark.LeftShoulder, landmark.LeftElbow, alongX),
		look("LeftLowerArm", landmark.LeftElbow, landmark.LeftWrist, alongX),
		look("LeftHand", landmark.LeftWrist, landmark.LeftIndex, alongX),
		look("RightUpperArm", landmark.RightShoulder, landmark.RightElbow, alongNegX),
		look("RightLowerArm", landmark.RightElbow, landmark.RightWrist, alongNegX),
		look("RightHand", landmark.RightWrist, landmark.RightIndex, alongNegX),

		look("LeftUpperLeg", landmark.LeftHip, landmark.LeftKnee, down),
		look("LeftLowerLeg", landmark.LeftKnee, landmark.LeftAnkle, down),
		look("LeftFoot", landmark.LeftHeel, landmark.LeftFootIndex, forward),
		look("RightUpperLeg", landmark.RightHip, landmark.RightKnee, down),
		look("RightLowerLeg", landmark.RightKnee, landmark.RightAnkle, down),
		look("RightFoot", landmark.RightHeel, landmark.RightFootIndex, forward),

		{Mode: Skip, Joint: "Head", From: landmark.Nose},
	}

	m, err := NewMap(AvatarRigged, affine, rules)
	if err != nil {
		panic(err)
	}
	return m
}

// DefaultTable returns a table holding the bundled maps.
func DefaultTable() *Table {
	t := NewTable()
	t.Register(AvatarRiggedMap())
	return t
}
