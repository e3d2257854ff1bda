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

// Package p3 advances the two-moment P3 cloud microphysics of a set of
// independent atmospheric columns by one time step. Process rates, size
// distributions and fall speeds are supplied by a Processes
// implementation, such as the one in science/rates/bulk; this package
// orders the calculations within each column, moves hydrometeors
// through the column by sedimentation and schedules the columns across
// the available processors.
package p3

// Version gives the version number.
const Version = "0.1.0"
