/*
Copyright © 2017 the InMAP authors.
This file is part of InMAP.

InMAP is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

InMAP is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with InMAP.  If not, see <http://www.gnu.org/licenses/>.
*/

package p3

// Physical constants.
const (
	Gravity   = 9.80616  // m/s2
	Cp        = 1004.64  // J/kg/K, specific heat of dry air
	Rd        = 287.042  // J/kg/K, gas constant of dry air
	Rv        = 461.505  // J/kg/K, gas constant of water vapor
	Ep2       = Rd / Rv  // ratio of molar masses of water and dry air
	LatVap    = 2.501e6  // J/kg, latent heat of vaporization
	LatIce    = 3.337e5  // J/kg, latent heat of fusion
	RhoWater  = 1000.    // kg/m3
	RhoIce    = 917.     // kg/m3
	RhoRimMax = 900.     // kg/m3, maximum density of rime
	RhoRimMin = 50.      // kg/m3, minimum density of rime
	TZero     = 273.15   // K, freezing point of water
	THomogFrz = 233.15   // K, homogeneous freezing threshold
	NcConst   = 200e6    // #/m3, prescribed droplet concentration when number is not predicted
	Pi        = 3.14159265358979323846
)

// Thresholds below which a hydrometeor species is treated as absent.
const (
	QSmall = 1e-14 // kg/kg
	NSmall = 1e-16 // #/kg
)

// Default diagnostic values set before any physics runs.
const (
	// ReflectivitySentinel marks a level with no radar signal [dBZ].
	ReflectivitySentinel = -99.
	// ReflectivityFloor is the smallest rain or ice reflectivity [m6/m3].
	ReflectivityFloor = 1e-22

	DefaultEffRadiusQc = 10e-6  // m
	DefaultEffRadiusQi = 25e-6  // m
	DefaultEffRadiusQr = 500e-6 // m
)

const (
	// minCloudFraction bounds cloud fractions away from zero before they are
	// inverted.
	minCloudFraction = 1e-4

	// minSubstep is the remaining time below which sedimentation
	// substepping stops [s].
	minSubstep = 1e-4

	// nucleationSupersat is the supersaturation above which new cloud or ice
	// can form.
	nucleationSupersat = -0.05

	// drySupersat and dryMass together define a level that is too dry to
	// keep a small amount of condensate.
	drySupersat = -0.1
	dryMass     = 1e-8
)
